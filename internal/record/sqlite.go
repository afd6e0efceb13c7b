package record

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/logging"
	"github.com/rip-project/rip/pkg/model"
)

// SQLiteFileName is the database inside the graveyard root.
const SQLiteFileName = ".record.db"

// SQLiteStore keeps graves in a SQLite table. Concurrent rip processes are
// serialized by SQLite's own locking.
type SQLiteStore struct {
	root string
	path string
	db   *sql.DB
	log  *logging.Logger
}

// OpenSQLite opens (creating if needed) the database of the graveyard at root.
func OpenSQLite(root string, log *logging.Logger) (s *SQLiteStore, err error) {
	if log == nil {
		log = logging.Global()
	}
	path := filepath.Join(root, SQLiteFileName)
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, errclass.ErrIO.Wrap(err, "open record database")
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, errclass.ClassifyMsg(err, "enable WAL (check permissions on "+path+")")
	}
	if _, err = db.Exec("PRAGMA synchronous=FULL"); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "set synchronous mode")
	}

	s = &SQLiteStore{root: root, path: path, db: db, log: log}
	if err = s.initSchema(); err != nil {
		return nil, errclass.ErrIO.Wrap(err, "init record schema")
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS graves (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL DEFAULT '',
		original TEXT NOT NULL,
		grave TEXT NOT NULL,
		kind TEXT NOT NULL,
		buried_at TEXT NOT NULL,
		user TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_graves_grave ON graves(grave);
	CREATE INDEX IF NOT EXISTS idx_graves_original ON graves(original);
	CREATE INDEX IF NOT EXISTS idx_graves_buried_at ON graves(buried_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Append inserts e. A second live entry for the same grave is rejected.
func (s *SQLiteStore) Append(e *model.GraveyardEntry) error {
	if err := validate(e); err != nil {
		return errclass.ErrInvalidArgs.Wrap(err, "append record")
	}
	_, err := s.db.Exec(
		`INSERT INTO graves (id, original, grave, kind, buried_at, user, size) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, filepath.Clean(string(e.Original)), relGrave(s.root, e.Grave), string(e.Kind),
		e.BuriedAt.UTC().Format(time.RFC3339Nano), e.User, e.Size,
	)
	if err != nil {
		return errclass.ErrIO.Wrap(err, "insert record")
	}
	return nil
}

// Remove deletes the entry stored at grave.
func (s *SQLiteStore) Remove(grave string) error {
	grave = filepath.Clean(grave)
	res, err := s.db.Exec(`DELETE FROM graves WHERE grave = ?`, relGrave(s.root, grave))
	if err != nil {
		return errclass.ErrIO.Wrap(err, "delete record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errclass.ErrIO.Wrap(err, "delete record")
	}
	if n == 0 {
		return notFound(grave)
	}
	return nil
}

// Lookup returns the entry stored at grave.
func (s *SQLiteStore) Lookup(grave string) (*model.GraveyardEntry, error) {
	grave = filepath.Clean(grave)
	row := s.db.QueryRow(
		`SELECT seq, id, original, grave, kind, buried_at, user, size FROM graves WHERE grave = ?`,
		relGrave(s.root, grave))
	e, _, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(grave)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns all readable entries, newest first.
func (s *SQLiteStore) List() ([]*model.GraveyardEntry, error) {
	entries, corrupt, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, c := range corrupt {
		s.log.Warn("skipping corrupt record row", map[string]any{
			"code": errclass.ErrRecordCorrupt.Code, "seq": c.Line, "reason": c.Reason,
		})
	}
	return entries, nil
}

// Load returns all entries, newest first, and rows whose timestamp or
// kind cannot be read.
func (s *SQLiteStore) Load() ([]*model.GraveyardEntry, []model.CorruptRecord, error) {
	rows, err := s.db.Query(
		`SELECT seq, id, original, grave, kind, buried_at, user, size FROM graves ORDER BY seq`)
	if err != nil {
		return nil, nil, errclass.ErrIO.Wrap(err, "query records")
	}
	defer rows.Close()

	var entries []*model.GraveyardEntry
	var corrupt []model.CorruptRecord
	for rows.Next() {
		e, seq, err := s.scan(rows)
		if err != nil {
			var bad *corruptRow
			if errors.As(err, &bad) {
				corrupt = append(corrupt, model.CorruptRecord{Line: int(seq), Raw: bad.raw, Reason: bad.reason})
				continue
			}
			return nil, nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errclass.ErrIO.Wrap(err, "read records")
	}
	sortLatestFirst(entries)
	return entries, corrupt, nil
}

type corruptRow struct {
	raw    string
	reason string
}

func (c *corruptRow) Error() string { return c.reason }

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scan(r scanner) (*model.GraveyardEntry, int64, error) {
	var (
		seq                               int64
		id, original, grave, kind, buried string
		user                              string
		size                              int64
	)
	if err := r.Scan(&seq, &id, &original, &grave, &kind, &buried, &user, &size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, err
		}
		return nil, 0, errclass.ErrIO.Wrap(err, "scan record")
	}
	raw := fmt.Sprintf("%s\t%s\t%s\t%s", buried, user, original, grave)
	at, err := time.Parse(time.RFC3339Nano, buried)
	if err != nil {
		return nil, seq, &corruptRow{raw: raw, reason: "bad buried_at: " + err.Error()}
	}
	switch model.EntryKind(kind) {
	case model.KindFile, model.KindDirectory, model.KindSymlink:
	default:
		return nil, seq, &corruptRow{raw: raw, reason: "unknown kind " + kind}
	}
	return &model.GraveyardEntry{
		ID:       id,
		Original: model.CanonicalPath(original),
		Grave:    absGrave(s.root, grave),
		Kind:     model.EntryKind(kind),
		BuriedAt: at,
		User:     user,
		Size:     size,
	}, seq, nil
}
