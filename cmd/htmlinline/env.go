package main

import (
	"io"
	"os"

	"github.com/spf13/afero"
)

// Environment holds injectable dependencies for testability.
// Includes I/O and the filesystem documents are read from.
type Environment struct {
	Stdout io.Writer
	Stderr io.Writer
	Fs     afero.Fs
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Fs:     afero.NewOsFs(),
	}
}
