//go:build !linux

package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

func enableSingleView() func() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func() {}
	}
	fmt.Print("\033[?1049h\033[?25l")
	return func() {
		fmt.Print("\033[?25h\033[?1049l")
	}
}
