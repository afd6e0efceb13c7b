//go:build linux

package engine

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// reflinkFile clones src into a new file dst with the FICLONE ioctl.
// dst is removed again when the ioctl fails.
func reflinkFile(src, dst string, info os.FileInfo) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create dst: %w", err)
	}
	defer dstFile.Close()

	if err := unix.IoctlFileClone(int(dstFile.Fd()), int(srcFile.Fd())); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return fmt.Errorf("ficlone: %w", err)
	}
	return finishFile(dstFile, dst, info)
}
