//go:build windows

package main

import (
	"fmt"
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}

func cmdStart([]string) {
	fmt.Fprintln(os.Stderr, "daemon mode is not supported on Windows. Use 'run' for foreground execution.")
	os.Exit(1)
}

func cmdStop([]string) {
	fmt.Fprintln(os.Stderr, "daemon mode is not supported on Windows.")
	os.Exit(1)
}

func cmdStatus([]string) {
	fmt.Fprintln(os.Stderr, "daemon mode is not supported on Windows.")
	os.Exit(1)
}
