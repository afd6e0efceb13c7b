//go:build windows

package fsutil

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// IsCrossDevice reports whether err is the result of renaming across volumes.
func IsCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}

// FreeBytes returns the bytes available to the caller on the volume holding path.
func FreeBytes(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return 0, err
	}
	return free, nil
}

// DeviceID approximates a device number with the volume name of path.
func DeviceID(path string) (uint64, error) {
	vol := filepath.VolumeName(path)
	var id uint64
	for _, r := range vol {
		id = id*31 + uint64(r)
	}
	return id, nil
}

// lockFile is a no-op on Windows; rip is a single-user CLI tool.
func lockFile(_ *os.File) error   { return nil }
func unlockFile(_ *os.File) error { return nil }

func isSyncUnsupported(err error) bool {
	return errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_INVALID_HANDLE)
}
