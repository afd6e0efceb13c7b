package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/rip-project/rip/pkg/jsonutil"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/model"
)

// File names inside the graveyard root.
const (
	JSONLFileName  = ".record.jsonl"
	LockFileName   = ".record.lock"
	LegacyFileName = ".record"
)

// JSONLStore keeps one JSON object per line. Every read-modify-write holds
// an exclusive lock on a sibling lock file, since rewrites replace the
// record file itself.
type JSONLStore struct {
	root     string
	path     string
	lockPath string
	log      *logging.Logger
}

// OpenJSONL opens the JSONL store of the graveyard at root. A tab-separated
// .record file from older graveyards is imported on first open.
func OpenJSONL(root string, log *logging.Logger) (*JSONLStore, error) {
	if log == nil {
		log = logging.Global()
	}
	s := &JSONLStore{
		root:     root,
		path:     filepath.Join(root, JSONLFileName),
		lockPath: filepath.Join(root, LockFileName),
		log:      log,
	}
	if err := s.importLegacy(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the record file.
func (s *JSONLStore) Path() string { return s.path }

// Close is a no-op; the store holds no open handles between calls.
func (s *JSONLStore) Close() error { return nil }

// Append adds e to the end of the file.
func (s *JSONLStore) Append(e *model.GraveyardEntry) error {
	if err := validate(e); err != nil {
		return errclass.ErrInvalidArgs.Wrap(err, "append record")
	}
	return s.withLock(func() error {
		line, err := s.encode(e)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
		if err != nil {
			return errclass.ClassifyMsg(err, "open record")
		}
		defer f.Close()
		torn, err := endsMidLine(f)
		if err != nil {
			return errclass.ClassifyMsg(err, "read record tail")
		}
		if torn {
			s.log.Warn("record file ends mid-line, starting a new line", map[string]any{"path": s.path})
			line = append([]byte{'\n'}, line...)
		}
		if _, err := f.Write(line); err != nil {
			return errclass.ClassifyMsg(err, "append record")
		}
		if err := f.Sync(); err != nil {
			return errclass.ClassifyMsg(err, "sync record")
		}
		return nil
	})
}

// endsMidLine reports whether f is non-empty and its last byte is not a
// newline, which is what an interrupted append leaves behind.
func endsMidLine(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Remove drops the first entry stored at grave and rewrites the file
// atomically. Unparseable lines are written back unchanged.
func (s *JSONLStore) Remove(grave string) error {
	grave = filepath.Clean(grave)
	return s.withLock(func() error {
		lines, err := s.readLocked()
		if err != nil {
			return err
		}
		kept := make([][]byte, 0, len(lines))
		removed := false
		for _, l := range lines {
			if !removed && l.entry != nil && l.entry.Grave == grave {
				removed = true
				continue
			}
			kept = append(kept, l.raw)
		}
		if !removed {
			return notFound(grave)
		}
		var buf bytes.Buffer
		for _, raw := range kept {
			buf.Write(raw)
			buf.WriteByte('\n')
		}
		if err := fsutil.AtomicWrite(s.path, buf.Bytes(), 0600); err != nil {
			return errclass.ClassifyMsg(err, "rewrite record")
		}
		return nil
	})
}

// Lookup returns the entry stored at grave.
func (s *JSONLStore) Lookup(grave string) (*model.GraveyardEntry, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	grave = filepath.Clean(grave)
	for _, e := range entries {
		if e.Grave == grave {
			return e, nil
		}
	}
	return nil, notFound(grave)
}

// List returns all readable entries, newest first. Corrupt lines are
// reported as warnings and skipped.
func (s *JSONLStore) List() ([]*model.GraveyardEntry, error) {
	entries, corrupt, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, c := range corrupt {
		s.log.Warn("skipping corrupt record line", map[string]any{
			"code": errclass.ErrRecordCorrupt.Code, "line": c.Line, "reason": c.Reason,
		})
	}
	return entries, nil
}

// Load returns all readable entries, newest first, and the corrupt lines.
func (s *JSONLStore) Load() ([]*model.GraveyardEntry, []model.CorruptRecord, error) {
	var lines []storedLine
	err := s.withLock(func() error {
		var err error
		lines, err = s.readLocked()
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	var entries []*model.GraveyardEntry
	var corrupt []model.CorruptRecord
	for _, l := range lines {
		if l.entry == nil {
			corrupt = append(corrupt, model.CorruptRecord{Line: l.n, Raw: string(l.raw), Reason: l.reason})
			continue
		}
		entries = append(entries, l.entry)
	}
	sortLatestFirst(entries)
	return entries, corrupt, nil
}

type storedLine struct {
	n      int
	raw    []byte
	entry  *model.GraveyardEntry
	reason string
}

func (s *JSONLStore) readLocked() ([]storedLine, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errclass.ClassifyMsg(err, "open record")
	}
	defer f.Close()

	var lines []storedLine
	err = jsonutil.ScanLines(f, func(n int, raw []byte) error {
		l := storedLine{n: n, raw: append([]byte(nil), raw...)}
		e, derr := s.decode(raw)
		if derr != nil {
			l.reason = derr.Error()
		} else {
			l.entry = e
		}
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		return nil, errclass.ErrRecordCorrupt.Wrap(err, "read record")
	}
	return lines, nil
}

func (s *JSONLStore) encode(e *model.GraveyardEntry) ([]byte, error) {
	stored := *e
	stored.Grave = relGrave(s.root, e.Grave)
	stored.Original = model.CanonicalPath(filepath.Clean(string(e.Original)))
	line, err := jsonutil.MarshalLine(&stored)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return line, nil
}

func (s *JSONLStore) decode(raw []byte) (*model.GraveyardEntry, error) {
	if len(raw) > jsonutil.MaxLine {
		return nil, fmt.Errorf("line of %d bytes exceeds %d", len(raw), jsonutil.MaxLine)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		return s.decodeLegacy(string(raw))
	}
	var e model.GraveyardEntry
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return nil, err
	}
	if e.Original == "" || e.Grave == "" {
		return nil, errors.New("missing original or grave")
	}
	e.Grave = absGrave(s.root, e.Grave)
	return &e, nil
}

// decodeLegacy parses "time\tuser\toriginal\tgrave".
func (s *JSONLStore) decodeLegacy(line string) (*model.GraveyardEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 4 {
		return nil, fmt.Errorf("expected 4 tab-separated fields, got %d", len(fields))
	}
	if fields[2] == "" || fields[3] == "" {
		return nil, errors.New("missing original or grave")
	}
	e := &model.GraveyardEntry{
		Original: model.CanonicalPath(filepath.Clean(fields[2])),
		Grave:    absGrave(s.root, fields[3]),
		User:     fields[1],
		Kind:     model.KindFile,
		BuriedAt: parseLegacyTime(fields[0]),
	}
	if info, err := os.Lstat(e.Grave); err == nil {
		e.Kind = model.KindOf(info)
	}
	return e, nil
}

func parseLegacyTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.ANSIC, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// importLegacy converts a tab-separated .record into the JSONL file when
// the JSONL file does not exist yet. The old file is kept as .record.imported.
func (s *JSONLStore) importLegacy() error {
	legacy := filepath.Join(s.root, LegacyFileName)
	if ok, _ := fsutil.Exists(legacy); !ok {
		return nil
	}
	return s.withLock(func() error {
		if ok, _ := fsutil.Exists(s.path); ok {
			return nil
		}
		data, err := os.ReadFile(legacy)
		if err != nil {
			return errclass.ClassifyMsg(err, "read legacy record")
		}
		var buf bytes.Buffer
		err = jsonutil.ScanLines(bytes.NewReader(data), func(n int, raw []byte) error {
			e, err := s.decodeLegacy(string(raw))
			if err != nil {
				// keep it verbatim so doctor can report it
				buf.Write(raw)
				buf.WriteByte('\n')
				return nil
			}
			line, err := s.encode(e)
			if err != nil {
				return err
			}
			buf.Write(line)
			return nil
		})
		if err != nil {
			return err
		}
		if err := fsutil.AtomicWrite(s.path, buf.Bytes(), 0600); err != nil {
			return errclass.ClassifyMsg(err, "import legacy record")
		}
		s.log.Info("imported legacy record file", map[string]any{"path": legacy})
		return os.Rename(legacy, legacy+".imported")
	})
}

func (s *JSONLStore) withLock(fn func() error) error {
	lock, err := fsutil.Lock(s.lockPath)
	if err != nil {
		return errclass.ClassifyMsg(err, "lock record")
	}
	defer lock.Unlock()
	return fn()
}
