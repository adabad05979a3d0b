//go:build windows

package cmd

import "os"

func pauseSignals() []os.Signal {
	return nil
}

func isPauseSignal(os.Signal) bool {
	return false
}
