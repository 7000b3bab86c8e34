// Package fs supplies the filesystem implementations the engine runs on.
// Production code uses the operating-system filesystem; tests swap in the
// in-memory one.
package fs

import "github.com/spf13/afero"

// New returns the operating-system filesystem.
func New() afero.Fs {
	return afero.NewOsFs()
}

// NewMem returns an in-memory filesystem for tests.
func NewMem() afero.Fs {
	return afero.NewMemMapFs()
}
