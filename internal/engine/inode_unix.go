//go:build !windows

package engine

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// fileInode extracts the inode number from file info on Unix systems.
func fileInode(info os.FileInfo) (uint64, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(stat.Ino), true
}

func makeFifo(path string, perm os.FileMode) error {
	if err := unix.Mkfifo(path, uint32(perm)); err != nil {
		return err
	}
	// mkfifo honors the umask
	return os.Chmod(path, perm)
}
