package engine

import (
	"os"
	"path/filepath"

	"github.com/rip-project/rip/pkg/model"
)

// NewEngine creates an engine of the given type. EngineAuto probes probeDir
// for reflink support and otherwise returns a CopyEngine.
func NewEngine(engineType model.EngineType, probeDir string) Engine {
	switch engineType {
	case model.EngineReflinkCopy:
		return NewReflinkEngine()
	case model.EngineCopy:
		return NewCopyEngine()
	default:
		return DetectEngine(probeDir)
	}
}

// DetectEngine returns a ReflinkEngine when dir's filesystem accepts FICLONE
// (btrfs, xfs) and a CopyEngine otherwise.
func DetectEngine(dir string) Engine {
	probe, err := os.MkdirTemp(dir, ".rip-reflink-probe-")
	if err != nil {
		return NewCopyEngine()
	}
	defer os.RemoveAll(probe)

	src := filepath.Join(probe, "src")
	if err := os.WriteFile(src, []byte("probe"), 0600); err != nil {
		return NewCopyEngine()
	}
	info, err := os.Lstat(src)
	if err != nil {
		return NewCopyEngine()
	}
	if reflinkFile(src, filepath.Join(probe, "clone"), info) == nil {
		return NewReflinkEngine()
	}
	return NewCopyEngine()
}
