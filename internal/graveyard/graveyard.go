// Package graveyard owns the graveyard directory: where it lives, how
// original paths map to graves inside it, and which files in it are rip's
// own bookkeeping.
package graveyard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rip-project/rip/internal/audit"
	"github.com/rip-project/rip/internal/record"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/pathutil"
)

// DirMode is the permission of a newly created graveyard.
const DirMode = 0700

// Graveyard is an opened graveyard directory.
type Graveyard struct {
	Root    string
	Records record.Store
	Audit   *audit.FileAppender
	log     *logging.Logger
}

// Open resolves root, creating it with DirMode if it does not exist, and
// opens its record store.
func Open(root string, backend model.RecordBackend, log *logging.Logger) (*Graveyard, error) {
	if log == nil {
		log = logging.Global()
	}
	if root == "" {
		return nil, errclass.ErrInvalidArgs.WithMessage("empty graveyard path")
	}
	abs, err := filepath.Abs(pathutil.StripVerbatim(root))
	if err != nil {
		return nil, errclass.ErrInvalidArgs.Wrapf(err, "graveyard %s", root)
	}

	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		log.Debug("creating graveyard", map[string]any{"path": abs})
		if err := os.MkdirAll(abs, DirMode); err != nil {
			return nil, errclass.ClassifyMsg(err, "create graveyard")
		}
		// MkdirAll is filtered by the umask
		if err := os.Chmod(abs, DirMode); err != nil {
			return nil, errclass.ClassifyMsg(err, "chmod graveyard")
		}
	} else if err != nil {
		return nil, errclass.ClassifyMsg(err, "stat graveyard")
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errclass.ClassifyMsg(err, "resolve graveyard")
	}

	store, err := record.Open(resolved, backend, log)
	if err != nil {
		return nil, err
	}
	log.Debug("graveyard opened", map[string]any{"path": resolved, "records": store.Path()})
	return &Graveyard{
		Root:    resolved,
		Records: store,
		Audit:   audit.ForGraveyard(resolved),
		log:     log,
	}, nil
}

// Close releases the record store.
func (g *Graveyard) Close() error {
	return g.Records.Close()
}

// Contains reports whether p is inside the graveyard (or is its root).
func (g *Graveyard) Contains(p string) bool {
	return pathutil.Within(g.Root, p)
}

// IsAncestor reports whether p is the graveyard or one of its ancestors.
// Burying such a path would move the graveyard into itself.
func (g *Graveyard) IsAncestor(p string) bool {
	return pathutil.Within(p, g.Root)
}

// MapGrave returns the grave for original: its mirrored path under the
// root, disambiguated against paths on disk and live records. A mirror
// directory that is itself a live grave (or not a directory) is
// disambiguated too, so a new grave never lands inside an older one.
func (g *Graveyard) MapGrave(original model.CanonicalPath) (string, error) {
	entries, err := g.Records.List()
	if err != nil {
		return "", err
	}
	live := make(map[string]bool, len(entries))
	for _, e := range entries {
		live[e.Grave] = true
	}
	return mapGrave(g.Root, string(original), live), nil
}

func mapGrave(root, original string, live map[string]bool) string {
	mirrored := JoinAbsolute(root, original)
	rel, err := filepath.Rel(root, mirrored)
	if err != nil || rel == "." {
		return Disambiguate(mirrored, func(p string) bool { return live[p] || existsOnDisk(p) })
	}
	parts := strings.Split(rel, string(filepath.Separator))

	blocked := func(p string) bool {
		if live[p] {
			return true
		}
		info, err := os.Lstat(p)
		return err == nil && !info.IsDir()
	}
	cur := root
	for _, c := range parts[:len(parts)-1] {
		cur = filepath.Join(cur, c)
		if blocked(cur) {
			cur = Disambiguate(cur, blocked)
		}
	}
	leaf := filepath.Join(cur, parts[len(parts)-1])
	return Disambiguate(leaf, func(p string) bool { return live[p] || existsOnDisk(p) })
}

// EnsureParent creates the directories above grave with DirMode.
func (g *Graveyard) EnsureParent(grave string) error {
	if err := os.MkdirAll(filepath.Dir(grave), DirMode); err != nil {
		return errclass.ClassifyMsg(err, "create grave parent")
	}
	return nil
}

// PruneEmptyParents removes empty directories above p up to, but not
// including, the root.
func (g *Graveyard) PruneEmptyParents(p string) {
	for dir := filepath.Dir(p); g.Contains(dir) && dir != g.Root; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

// IsBookkeeping reports whether name, a top-level entry of the root, is one
// of rip's own files.
func IsBookkeeping(name string) bool {
	switch name {
	case record.JSONLFileName, record.LockFileName, record.LegacyFileName,
		record.LegacyFileName + ".imported", audit.FileName:
		return true
	}
	if strings.HasPrefix(name, record.SQLiteFileName) {
		return true
	}
	return strings.HasPrefix(name, fsutil.TempPrefix)
}

// Remove deletes the whole graveyard directory.
func (g *Graveyard) Remove() error {
	if err := g.Records.Close(); err != nil {
		g.log.Debug("close records before removal", map[string]any{"error": err.Error()})
	}
	if err := os.RemoveAll(g.Root); err != nil {
		return errclass.ClassifyMsg(err, fmt.Sprintf("remove graveyard %s", g.Root))
	}
	return nil
}
