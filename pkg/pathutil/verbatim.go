package pathutil

import "strings"

// StripVerbatim removes Windows extended-length prefixes so that
// `\\?\C:\dir` becomes `C:\dir` and `\\?\UNC\srv\share` becomes `\\srv\share`.
// Other paths are returned unchanged.
func StripVerbatim(p string) string {
	switch {
	case strings.HasPrefix(p, `\\?\UNC\`):
		return `\\` + p[len(`\\?\UNC\`):]
	case strings.HasPrefix(p, `\\?\`) && len(p) >= 6 && p[5] == ':':
		return p[len(`\\?\`):]
	default:
		return p
	}
}
