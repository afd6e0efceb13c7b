package model

import (
	"os"
	"time"
)

// CanonicalPath is an absolute, symlink-resolved, platform-normalized path.
// Only the path resolver produces one.
type CanonicalPath string

// String returns the path as a plain string.
func (p CanonicalPath) String() string {
	return string(p)
}

// EntryKind is the filesystem type of a buried item.
type EntryKind string

const (
	KindFile      EntryKind = "file"
	KindDirectory EntryKind = "directory"
	KindSymlink   EntryKind = "symlink"
)

// KindOf maps Lstat info to an EntryKind. Special files (fifos, sockets)
// are reported as files.
func KindOf(info os.FileInfo) EntryKind {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return KindSymlink
	case info.IsDir():
		return KindDirectory
	default:
		return KindFile
	}
}

// GraveyardEntry is one live record in the Record Store.
// Grave is always absolute in memory; stores may persist it relative to the graveyard root.
type GraveyardEntry struct {
	ID       string        `json:"id,omitempty"`
	Original CanonicalPath `json:"original"`
	Grave    string        `json:"grave"`
	Kind     EntryKind     `json:"kind"`
	BuriedAt time.Time     `json:"buried_at"`
	User     string        `json:"user,omitempty"`
	Size     int64         `json:"size,omitempty"`
}

// CorruptRecord describes a record line that could not be parsed.
type CorruptRecord struct {
	Line   int    `json:"line"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// SelectorKind identifies how a Selector picks entries.
type SelectorKind string

const (
	SelectLatest    SelectorKind = "latest"
	SelectOriginal  SelectorKind = "original"
	SelectGrave     SelectorKind = "grave"
	SelectUnder     SelectorKind = "under"
	SelectAll       SelectorKind = "all"
	SelectOlderThan SelectorKind = "older_than"
)

// Selector picks graveyard entries for restore and purge.
type Selector struct {
	Kind SelectorKind  `json:"kind"`
	Path string        `json:"path,omitempty"`
	Age  time.Duration `json:"age,omitempty"`
}

// Latest selects the most recently buried entry.
func Latest() Selector { return Selector{Kind: SelectLatest} }

// ByOriginal selects entries buried from path.
func ByOriginal(path string) Selector { return Selector{Kind: SelectOriginal, Path: path} }

// ByGrave selects the entry stored at the given grave path.
func ByGrave(path string) Selector { return Selector{Kind: SelectGrave, Path: path} }

// Under selects entries whose original path is dir or lies below it.
func Under(dir string) Selector { return Selector{Kind: SelectUnder, Path: dir} }

// All selects every entry.
func All() Selector { return Selector{Kind: SelectAll} }

// OlderThan selects entries buried more than age ago.
func OlderThan(age time.Duration) Selector { return Selector{Kind: SelectOlderThan, Age: age} }
