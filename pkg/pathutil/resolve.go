// Package pathutil is the Path Resolver: it turns user-supplied paths into
// model.CanonicalPath values and hides platform path quirks from the rest of rip.
package pathutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/model"
)

// Resolve canonicalizes input (relative to cwd) for burial. The target must exist.
// A symlink is never followed: its parent directory is resolved and the link's
// own name is kept, so the link itself is what gets buried.
func Resolve(cwd, input string) (model.CanonicalPath, os.FileInfo, error) {
	if input == "" {
		return "", nil, errclass.ErrInvalidArgs.WithMessage("empty path")
	}
	abs := absolute(cwd, input)

	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, errclass.ErrNotFound.Wrapf(err, "cannot remove %s", input)
		}
		return "", nil, errclass.ClassifyMsg(err, "lstat "+input)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
		if err != nil {
			return "", nil, errclass.ClassifyMsg(err, "resolve parent of "+input)
		}
		return canonical(filepath.Join(parent, filepath.Base(abs))), info, nil
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", nil, errclass.ClassifyMsg(err, "canonicalize "+input)
	}
	return canonical(resolved), info, nil
}

// ResolveDestination canonicalizes a path that may not exist, such as a restore
// target. The closest existing ancestor is resolved and the remaining
// components are appended unchanged.
func ResolveDestination(path string) model.CanonicalPath {
	abs := canonical(path)
	if _, err := os.Lstat(string(abs)); err == nil {
		parent, err := filepath.EvalSymlinks(filepath.Dir(string(abs)))
		if err != nil {
			return abs
		}
		return canonical(filepath.Join(parent, filepath.Base(string(abs))))
	}
	return canonical(resolveClosestAncestor(string(abs)))
}

// Within reports whether p is root or lies below it.
func Within(root, p string) bool {
	root = filepath.Clean(root)
	p = filepath.Clean(p)
	if root == p {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Equal compares two user-visible paths after NFC normalization, so that a
// selector typed on one system matches a record written with decomposed names.
func Equal(a, b string) bool {
	return NormalizeSelector(a) == NormalizeSelector(b)
}

// NormalizeSelector cleans a selector path and applies Unicode NFC.
func NormalizeSelector(s string) string {
	if s == "" {
		return ""
	}
	return norm.NFC.String(filepath.Clean(s))
}

func absolute(cwd, input string) string {
	p := StripVerbatim(input)
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	return filepath.Clean(p)
}

func canonical(p string) model.CanonicalPath {
	p = StripVerbatim(p)
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return model.CanonicalPath(filepath.Clean(p))
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == path {
		return path
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
