//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

func pauseSignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1}
}

func isPauseSignal(sig os.Signal) bool {
	return sig == syscall.SIGUSR1
}
