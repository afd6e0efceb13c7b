// Package record is the Record Store: the persistent list of live graves and
// where each one came from.
package record

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/model"
)

// Store persists graveyard entries. Implementations are safe for use by
// several rip processes sharing one graveyard.
type Store interface {
	// Append adds a live entry.
	Append(e *model.GraveyardEntry) error
	// Remove drops the entry stored at grave. E_NOT_FOUND if there is none.
	Remove(grave string) error
	// Lookup returns the entry stored at grave. E_NOT_FOUND if there is none.
	Lookup(grave string) (*model.GraveyardEntry, error)
	// List returns all readable entries, most recently buried first.
	List() ([]*model.GraveyardEntry, error)
	// Load is List plus the records that could not be parsed.
	Load() ([]*model.GraveyardEntry, []model.CorruptRecord, error)
	// Path is the backing file.
	Path() string
	Close() error
}

// Open opens the store of the given backend in the graveyard at root.
func Open(root string, backend model.RecordBackend, log *logging.Logger) (Store, error) {
	if log == nil {
		log = logging.Global()
	}
	switch backend {
	case "", model.RecordBackendJSONL:
		return OpenJSONL(root, log)
	case model.RecordBackendSQLite:
		return OpenSQLite(root, log)
	default:
		return nil, errclass.ErrInvalidArgs.WithMessagef("unknown record backend %q", backend)
	}
}

// relGrave converts an absolute grave into the slash-separated form stored
// on disk. Graves outside root are kept absolute.
func relGrave(root, grave string) string {
	rel, err := filepath.Rel(root, grave)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return grave
	}
	return filepath.ToSlash(rel)
}

// absGrave is the inverse of relGrave.
func absGrave(root, stored string) string {
	if filepath.IsAbs(stored) || filepath.VolumeName(stored) != "" {
		return filepath.Clean(stored)
	}
	return filepath.Join(root, filepath.FromSlash(stored))
}

func validate(e *model.GraveyardEntry) error {
	if e == nil || e.Original == "" || e.Grave == "" {
		return fmt.Errorf("entry needs original and grave paths")
	}
	return nil
}

// sortLatestFirst orders entries by burial time, newest first. Entries with
// equal times keep reverse insertion order.
func sortLatestFirst(entries []*model.GraveyardEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].BuriedAt.After(entries[j].BuriedAt)
	})
}

func notFound(grave string) error {
	return errclass.ErrNotFound.WithMessagef("no record for grave %s", grave)
}
