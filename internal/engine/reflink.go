package engine

import (
	"os"

	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/progress"
)

// ReflinkEngine clones regular files with copy-on-write extents on
// filesystems that support it. Rename fails across btrfs subvolumes and bind
// mounts of one filesystem while FICLONE still works there. Files that cannot
// be reflinked are copied.
type ReflinkEngine struct{}

// NewReflinkEngine creates a new ReflinkEngine.
func NewReflinkEngine() *ReflinkEngine {
	return &ReflinkEngine{}
}

// Name returns the engine type.
func (e *ReflinkEngine) Name() model.EngineType {
	return model.EngineReflinkCopy
}

// Clone reflinks src to dst, degrading to a byte copy per file.
func (e *ReflinkEngine) Clone(src, dst string, prog *progress.Progress) (*CloneResult, error) {
	return cloneTree(src, dst, prog, func(s, d string, info os.FileInfo, r *CloneResult) error {
		if err := reflinkFile(s, d, info); err == nil {
			if prog != nil {
				prog.Add(info.Size(), "")
			}
			return nil
		}
		r.Degraded = true
		r.Degradations = append(r.Degradations, "reflink")
		return copyFile(s, d, info, prog)
	})
}
