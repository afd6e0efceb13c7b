package engine

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/progress"
)

// ErrUnsupportedFile is returned for sockets and device nodes, which cannot
// be carried across devices.
var ErrUnsupportedFile = errors.New("unsupported file type")

// CopyEngine performs a full recursive copy.
type CopyEngine struct{}

// NewCopyEngine creates a new CopyEngine.
func NewCopyEngine() *CopyEngine {
	return &CopyEngine{}
}

// Name returns the engine type.
func (e *CopyEngine) Name() model.EngineType {
	return model.EngineCopy
}

// Clone recursively copies src to dst, preserving permission bits and
// modification times. Symlinks are copied as links and fifos are recreated.
func (e *CopyEngine) Clone(src, dst string, prog *progress.Progress) (*CloneResult, error) {
	return cloneTree(src, dst, prog, func(s, d string, info os.FileInfo, r *CloneResult) error {
		return copyFile(s, d, info, prog)
	})
}

// fileCloner copies one regular file.
type fileCloner func(src, dst string, info os.FileInfo, result *CloneResult) error

type dirMeta struct {
	path string
	info os.FileInfo
}

// cloneTree walks src and recreates it at dst. Directories are created
// owner-writable and get their real mode and mtime once their children are
// in place, so read-only trees can be copied.
func cloneTree(src, dst string, prog *progress.Progress, cloneFile fileCloner) (*CloneResult, error) {
	result := &CloneResult{}
	seenInodes := make(map[uint64]string)
	var dirs []dirMeta

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}
		dstPath := filepath.Join(dst, rel)
		mode := info.Mode()

		switch {
		case mode.IsDir():
			if err := os.Mkdir(dstPath, 0700); err != nil {
				return fmt.Errorf("mkdir %s: %w", dstPath, err)
			}
			dirs = append(dirs, dirMeta{dstPath, info})
			return nil

		case mode&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return fmt.Errorf("symlink %s: %w", dstPath, err)
			}
			return nil

		case mode&os.ModeNamedPipe != 0:
			if err := makeFifo(dstPath, mode.Perm()); err != nil {
				return fmt.Errorf("mkfifo %s: %w", dstPath, err)
			}
			return nil

		case mode.IsRegular():
			// Hardlinks within the tree become independent copies.
			if ino, ok := fileInode(info); ok {
				if seenInodes[ino] != "" {
					result.Degraded = true
					result.Degradations = append(result.Degradations, "hardlink")
				} else {
					seenInodes[ino] = path
				}
			}
			if err := cloneFile(path, dstPath, info, result); err != nil {
				return err
			}
			result.Files++
			result.Bytes += info.Size()
			return nil

		default:
			return fmt.Errorf("%s: %w (%s)", path, ErrUnsupportedFile, mode.Type())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("copy: %w", err)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if err := os.Chmod(d.path, d.info.Mode().Perm()|d.info.Mode()&(os.ModeSetgid|os.ModeSticky)); err != nil {
			return nil, fmt.Errorf("chmod %s: %w", d.path, err)
		}
		if err := os.Chtimes(d.path, d.info.ModTime(), d.info.ModTime()); err != nil {
			return nil, fmt.Errorf("chtimes %s: %w", d.path, err)
		}
	}

	syncDir := dst
	if len(dirs) == 0 {
		syncDir = filepath.Dir(dst)
	}
	if err := fsutil.FsyncDir(syncDir); err != nil {
		return nil, fmt.Errorf("fsync dst: %w", err)
	}
	return result, nil
}

func copyFile(src, dst string, info os.FileInfo, prog *progress.Progress) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open src %s: %w", src, err)
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create dst %s: %w", dst, err)
	}
	defer dstFile.Close()

	var w io.Writer = dstFile
	if prog != nil {
		w = prog.Writer(dstFile)
	}
	if _, err := io.Copy(w, srcFile); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := dstFile.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return finishFile(dstFile, dst, info)
}

// finishFile applies the source's mode explicitly, since the create mode is
// filtered by the umask, and then its modification time.
func finishFile(f *os.File, dst string, info os.FileInfo) error {
	if err := f.Chmod(info.Mode().Perm() | info.Mode()&(os.ModeSetuid|os.ModeSetgid|os.ModeSticky)); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
