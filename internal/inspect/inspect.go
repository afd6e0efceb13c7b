// Package inspect summarizes a path before it is buried.
package inspect

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/rip-project/rip/pkg/model"
	"github.com/rip-project/rip/pkg/progress"
)

// Limits of a summary.
const (
	MaxEntries = 6
	MaxLines   = 6
)

// Summary describes a path: a directory's total size and first top-level
// entries, or a file's size and first lines.
type Summary struct {
	Path    string          `json:"path"`
	Kind    model.EntryKind `json:"kind"`
	Size    int64           `json:"size"`
	Items   int             `json:"items,omitempty"`
	Entries []string        `json:"entries,omitempty"`
	Lines   []string        `json:"lines,omitempty"`
	// ReadError is set when the file content could not be read.
	ReadError string `json:"read_error,omitempty"`
}

// Inspect summarizes path without following a final symlink.
func Inspect(path string) (*Summary, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, errclass.ClassifyMsg(err, "inspect "+path)
	}
	s := &Summary{Path: path, Kind: model.KindOf(info)}

	switch s.Kind {
	case model.KindDirectory:
		size, items, err := fsutil.TreeSize(path)
		if err != nil {
			return nil, errclass.ClassifyMsg(err, "measure "+path)
		}
		s.Size, s.Items = size, items
		des, err := os.ReadDir(path)
		if err != nil {
			return nil, errclass.ClassifyMsg(err, "list "+path)
		}
		for _, de := range des {
			if len(s.Entries) == MaxEntries {
				break
			}
			s.Entries = append(s.Entries, filepath.Join(path, de.Name()))
		}
	case model.KindSymlink:
		s.Size = info.Size()
		if target, err := os.Readlink(path); err == nil {
			s.Lines = []string{"-> " + target}
		}
	default:
		s.Size = info.Size()
		if info.Mode().IsRegular() {
			s.Lines, err = headLines(path, MaxLines)
			if err != nil {
				s.ReadError = err.Error()
			}
		}
	}
	return s, nil
}

func headLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for len(lines) < n && sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// Render writes the human-readable summary.
func (s *Summary) Render(w io.Writer) {
	switch s.Kind {
	case model.KindDirectory:
		fmt.Fprintf(w, "%s: directory, %s including:\n", s.Path, progress.HumanBytes(s.Size))
		for _, e := range s.Entries {
			fmt.Fprintln(w, e)
		}
	default:
		fmt.Fprintf(w, "%s: %s, %s\n", s.Path, s.Kind, progress.HumanBytes(s.Size))
		for _, l := range s.Lines {
			fmt.Fprintf(w, "> %s\n", l)
		}
		if s.ReadError != "" {
			fmt.Fprintf(w, "Error reading %s\n", s.Path)
		}
	}
}
