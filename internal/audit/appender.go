// Package audit keeps a tamper-evident history of graveyard operations.
// Every record carries the hash of its predecessor.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rip-project/rip/internal/integrity"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/rip-project/rip/pkg/jsonutil"
	"github.com/rip-project/rip/pkg/model"
)

// FileName is the audit log inside the graveyard root.
const FileName = ".audit.jsonl"

// Event is one operation to record.
type Event struct {
	Type     model.AuditEventType
	Original string
	Grave    string
	Details  map[string]any
}

// FileAppender appends audit records to a JSONL file with hash chain.
type FileAppender struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileAppender creates a new FileAppender.
func NewFileAppender(path string) *FileAppender {
	return &FileAppender{path: path, now: time.Now}
}

// ForGraveyard returns the appender for the log of the graveyard at root.
func ForGraveyard(root string) *FileAppender {
	return NewFileAppender(filepath.Join(root, FileName))
}

// Path returns the log location.
func (a *FileAppender) Path() string {
	return a.path
}

// Append adds a new audit record to the log.
func (a *FileAppender) Append(ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0700); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	lock, err := fsutil.LockOpen(file)
	if err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer lock.Unlock()

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return fmt.Errorf("get last record hash: %w", err)
	}

	record := &model.AuditRecord{
		Timestamp: a.now().UTC(),
		EventType: ev.Type,
		Original:  ev.Original,
		Grave:     ev.Grave,
		Details:   ev.Details,
		PrevHash:  prevHash,
	}
	record.RecordHash, err = computeRecordHash(record)
	if err != nil {
		return fmt.Errorf("compute record hash: %w", err)
	}

	line, err := jsonutil.MarshalLine(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(line); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// GetLastRecordHash returns the hash of the last record in the log.
func (a *FileAppender) GetLastRecordHash() (model.HashValue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()
	return lastRecordHash(file)
}

// Records reads every record of the log. A missing log has no records.
func (a *FileAppender) Records() ([]model.AuditRecord, error) {
	file, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	var records []model.AuditRecord
	err = jsonutil.ScanLines(file, func(n int, line []byte) error {
		var r model.AuditRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return errclass.ErrAuditChainBroken.Wrapf(err, "line %d", n)
		}
		records = append(records, r)
		return nil
	})
	return records, err
}

// Verify walks the chain and returns the number of intact records. A record
// whose hash does not match its content, or whose predecessor link is wrong,
// yields E_AUDIT_CHAIN_BROKEN.
func (a *FileAppender) Verify() (int, error) {
	records, err := a.Records()
	if err != nil {
		return 0, err
	}
	var prev model.HashValue
	for i := range records {
		r := &records[i]
		if r.PrevHash != prev {
			return i, errclass.ErrAuditChainBroken.WithMessagef("record %d: previous hash mismatch", i+1)
		}
		want, err := computeRecordHash(r)
		if err != nil {
			return i, fmt.Errorf("hash record %d: %w", i+1, err)
		}
		if want != r.RecordHash {
			return i, errclass.ErrAuditChainBroken.WithMessagef("record %d: content does not match its hash", i+1)
		}
		prev = r.RecordHash
	}
	return len(records), nil
}

func lastRecordHash(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek to start: %w", err)
	}
	var lastHash model.HashValue
	err := jsonutil.ScanLines(file, func(_ int, line []byte) error {
		var record model.AuditRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil // skip malformed lines
		}
		lastHash = record.RecordHash
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan audit log: %w", err)
	}
	return lastHash, nil
}

func computeRecordHash(record *model.AuditRecord) (model.HashValue, error) {
	hashRecord := *record
	hashRecord.RecordHash = ""
	return integrity.CanonicalHash(&hashRecord)
}
