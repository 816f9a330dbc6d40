package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout io.Writer
	Stderr io.Writer
	// IsTerminal reports whether Stdout is an interactive terminal.
	IsTerminal func() bool
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		IsTerminal: func() bool {
			fd := os.Stdout.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
	}
}
