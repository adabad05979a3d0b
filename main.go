package main

import "github.com/tanq16/mediastitch/cmd"

func main() {
	cmd.Execute()
}
