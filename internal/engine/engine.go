// Package engine relocates items into and out of the graveyard.
//
// A Mover first tries a plain rename. When source and destination sit on
// different devices it falls back to copying with one of the Engines,
// verifies the copy, and only then removes the source.
package engine

import (
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/progress"
)

// CloneResult contains the result of a clone operation.
type CloneResult struct {
	Files        int
	Bytes        int64
	Degraded     bool     // true if any degradation occurred
	Degradations []string // list of degradation types
}

// Engine copies a file, symlink, fifo or directory tree from src to a new
// path dst. dst must not exist.
type Engine interface {
	// Name returns the engine type identifier.
	Name() model.EngineType

	// Clone copies src to dst, reporting copied bytes to prog when it is non-nil.
	Clone(src, dst string, prog *progress.Progress) (*CloneResult, error)
}
