package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rip-project/rip/pkg/model"
)

// TreeSummary is the result of hashing a tree.
type TreeSummary struct {
	Hash  model.HashValue
	Files int
	Bytes int64
}

// ComputeTreeHash hashes the tree rooted at root, which may be a file, a
// symlink or a directory. The hash covers structure, entry kind, permission
// bits, sizes, file content and link targets. Names are taken relative to
// root and the root's own name is excluded, so a copy stored under a
// different name hashes the same. Modification times are not part of it.
func ComputeTreeHash(root string) (*TreeSummary, error) {
	var lines []string
	sum := &TreeSummary{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}

		contentHash, err := entryHash(path, info)
		if err != nil {
			return fmt.Errorf("hash %s: %w", rel, err)
		}
		if info.Mode().IsRegular() {
			sum.Files++
			sum.Bytes += info.Size()
		}

		// <kind>:<path>:<metadata>:<hash>, paths with forward slashes
		lines = append(lines, fmt.Sprintf("%s:%s:%s:%s",
			entryType(info), filepath.ToSlash(rel), metadata(info), contentHash))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree: %w", err)
	}

	sort.Strings(lines)
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	h := sha256.Sum256([]byte(buf.String()))
	sum.Hash = model.HashValue(hex.EncodeToString(h[:]))
	return sum, nil
}

func entryType(info os.FileInfo) string {
	m := info.Mode()
	switch {
	case m.IsDir():
		return "dir"
	case m&os.ModeSymlink != 0:
		return "symlink"
	case m&os.ModeNamedPipe != 0:
		return "fifo"
	case m.IsRegular():
		return "file"
	default:
		return "special"
	}
}

func metadata(info os.FileInfo) string {
	if info.Mode().IsRegular() {
		return fmt.Sprintf("mode=%04o,size=%d", info.Mode().Perm(), info.Size())
	}
	return fmt.Sprintf("mode=%04o", info.Mode().Perm())
}

func entryHash(path string, info os.FileInfo) (string, error) {
	h := sha256.New()
	m := info.Mode()
	switch {
	case m&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("read symlink: %w", err)
		}
		h.Write([]byte(target))

	case m.IsRegular():
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open file: %w", err)
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
