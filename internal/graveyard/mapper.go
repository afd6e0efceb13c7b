package graveyard

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// JoinAbsolute mirrors original under root. The volume is rewritten into a
// plain path component ("C:" becomes "C", "\\srv\share" becomes
// "UNC/srv/share") and leading separators are dropped, so every original
// maps to a distinct path inside root.
func JoinAbsolute(root, original string) string {
	vol := filepath.VolumeName(original)
	rest := strings.TrimLeft(original[len(vol):], `/\`)
	parts := []string{root}
	if c := VolumeComponent(vol); c != "" {
		parts = append(parts, filepath.FromSlash(c))
	}
	parts = append(parts, rest)
	return filepath.Join(parts...)
}

// VolumeComponent turns a Windows volume name into a relative path.
func VolumeComponent(vol string) string {
	switch {
	case vol == "":
		return ""
	case len(vol) == 2 && vol[1] == ':':
		return vol[:1]
	default:
		share := strings.TrimLeft(strings.ReplaceAll(vol, `\`, "/"), "/")
		share = strings.TrimPrefix(share, "?/UNC/")
		share = strings.TrimPrefix(share, "?/")
		return "UNC/" + share
	}
}

// Disambiguate returns grave if it is free, otherwise the first free
// grave~1, grave~2, ... in that order.
func Disambiguate(grave string, taken func(string) bool) string {
	if !taken(grave) {
		return grave
	}
	for n := 1; ; n++ {
		candidate := grave + "~" + strconv.Itoa(n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// existsOnDisk reports whether p exists without following a final symlink.
func existsOnDisk(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
