package record_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rip-project/rip/internal/record"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backends = []model.RecordBackend{model.RecordBackendJSONL, model.RecordBackendSQLite}

func openStore(t *testing.T, backend model.RecordBackend) (record.Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := record.Open(root, backend, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, root
}

func entry(root, original string, at time.Time) *model.GraveyardEntry {
	return &model.GraveyardEntry{
		ID:       "id-" + filepath.Base(original),
		Original: model.CanonicalPath(original),
		Grave:    filepath.Join(root, original),
		Kind:     model.KindFile,
		BuriedAt: at,
		User:     "tester",
		Size:     42,
	}
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestStore_AppendListLookupRemove(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			s, root := openStore(t, backend)
			a := entry(root, "/home/u/a.txt", t0)
			b := entry(root, "/home/u/b.txt", t0.Add(time.Minute))
			require.NoError(t, s.Append(a))
			require.NoError(t, s.Append(b))

			list, err := s.List()
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, b.Grave, list[0].Grave, "newest first")
			assert.Equal(t, a.Original, list[1].Original)
			assert.True(t, a.BuriedAt.Equal(list[1].BuriedAt))
			assert.Equal(t, "tester", list[1].User)
			assert.Equal(t, int64(42), list[1].Size)

			got, err := s.Lookup(a.Grave)
			require.NoError(t, err)
			assert.Equal(t, a.ID, got.ID)

			require.NoError(t, s.Remove(a.Grave))
			_, err = s.Lookup(a.Grave)
			assert.ErrorIs(t, err, errclass.ErrNotFound)
			assert.ErrorIs(t, s.Remove(a.Grave), errclass.ErrNotFound)

			list, err = s.List()
			require.NoError(t, err)
			require.Len(t, list, 1)
		})
	}
}

func TestStore_EqualTimesKeepReverseInsertionOrder(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			s, root := openStore(t, backend)
			for _, name := range []string{"/1", "/2", "/3"} {
				require.NoError(t, s.Append(entry(root, name, t0)))
			}
			list, err := s.List()
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, model.CanonicalPath("/3"), list[0].Original)
			assert.Equal(t, model.CanonicalPath("/1"), list[2].Original)
		})
	}
}

func TestStore_RejectsIncompleteEntry(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			s, _ := openStore(t, backend)
			err := s.Append(&model.GraveyardEntry{Original: "/x"})
			assert.ErrorIs(t, err, errclass.ErrInvalidArgs)
		})
	}
}

func TestStore_ReopenPersists(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			root := t.TempDir()
			s, err := record.Open(root, backend, nil)
			require.NoError(t, err)
			require.NoError(t, s.Append(entry(root, "/persist", t0)))
			require.NoError(t, s.Close())

			s, err = record.Open(root, backend, nil)
			require.NoError(t, err)
			defer s.Close()
			list, err := s.List()
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, filepath.Join(root, "persist"), list[0].Grave)
		})
	}
}

func TestStore_ConcurrentAppends(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			s, root := openStore(t, backend)
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					e := entry(root, filepath.Join("/c", string(rune('a'+i))), t0)
					assert.NoError(t, s.Append(e))
				}(i)
			}
			wg.Wait()
			list, err := s.List()
			require.NoError(t, err)
			assert.Len(t, list, 20)
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := record.Open(t.TempDir(), "csv", nil)
	assert.ErrorIs(t, err, errclass.ErrInvalidArgs)
}

func TestJSONL_StoresGraveRelative(t *testing.T) {
	s, root := openStore(t, model.RecordBackendJSONL)
	require.NoError(t, s.Append(entry(root, "/home/u/rel.txt", t0)))

	data, err := os.ReadFile(filepath.Join(root, record.JSONLFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"grave":"home/u/rel.txt"`)
	assert.NotContains(t, string(data), root)
}

func TestJSONL_CorruptLinesSkippedAndPreserved(t *testing.T) {
	s, root := openStore(t, model.RecordBackendJSONL)
	require.NoError(t, s.Append(entry(root, "/ok1", t0)))
	path := filepath.Join(root, record.JSONLFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, s.Append(entry(root, "/ok2", t0.Add(time.Second))))

	entries, corrupt, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	require.Len(t, corrupt, 1)
	assert.Equal(t, 2, corrupt[0].Line)
	assert.Equal(t, "{not json", corrupt[0].Raw)

	require.NoError(t, s.Remove(filepath.Join(root, "ok1")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "{not json\n", "corrupt line survives rewrite")
	assert.NotContains(t, string(data), "ok1")
}

func TestJSONL_LegacyTabLines(t *testing.T) {
	s, root := openStore(t, model.RecordBackendJSONL)
	path := filepath.Join(root, record.JSONLFileName)
	legacy := "2024-01-02T03:04:05Z\tbob\t/home/bob/old.txt\t" + filepath.Join(root, "home/bob/old.txt") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0600))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.CanonicalPath("/home/bob/old.txt"), list[0].Original)
	assert.Equal(t, "bob", list[0].User)
	assert.Equal(t, 2024, list[0].BuriedAt.Year())
}

func TestJSONL_ImportsLegacyRecordFile(t *testing.T) {
	root := t.TempDir()
	grave := filepath.Join(root, "tmp", "x")
	lines := strings.Join([]string{
		"Tue Jan  2 03:04:05 2024\talice\t/tmp/x\t" + grave,
		"garbage",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, record.LegacyFileName), []byte(lines), 0600))

	s, err := record.OpenJSONL(root, nil)
	require.NoError(t, err)
	entries, corrupt, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, grave, entries[0].Grave)
	assert.Equal(t, "alice", entries[0].User)
	assert.Len(t, corrupt, 1)

	assert.NoFileExists(t, filepath.Join(root, record.LegacyFileName))
	assert.FileExists(t, filepath.Join(root, record.LegacyFileName+".imported"))
}

func TestSQLite_DuplicateGraveRejected(t *testing.T) {
	s, root := openStore(t, model.RecordBackendSQLite)
	e := entry(root, "/dup", t0)
	require.NoError(t, s.Append(e))
	assert.Error(t, s.Append(e))
}

func TestJSONL_AppendAfterTornLine(t *testing.T) {
	s, root := openStore(t, model.RecordBackendJSONL)
	require.NoError(t, s.Append(entry(root, "/a/one.txt", t0)))
	path := filepath.Join(root, record.JSONLFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"original":"/a/tw`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.Append(entry(root, "/a/two.txt", t0.Add(time.Second))))

	entries, corrupt, err := s.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.CanonicalPath("/a/two.txt"), entries[0].Original)
	require.Len(t, corrupt, 1)
	assert.Equal(t, `{"original":"/a/tw`, corrupt[0].Raw)

	found, err := s.Lookup(filepath.Join(root, "a", "two.txt"))
	require.NoError(t, err)
	assert.Equal(t, model.CanonicalPath("/a/two.txt"), found.Original)
}

func TestJSONL_OverlongLineIsCorruptNotFatal(t *testing.T) {
	s, root := openStore(t, model.RecordBackendJSONL)
	require.NoError(t, s.Append(entry(root, "/keep1", t0)))
	path := filepath.Join(root, record.JSONLFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.Write(append(make([]byte, 5<<20), '\n'))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, s.Append(entry(root, "/keep2", t0.Add(time.Second))))

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, corrupt, err := s.Load()
	require.NoError(t, err)
	require.Len(t, corrupt, 1)
	assert.Equal(t, 2, corrupt[0].Line)
	assert.Contains(t, corrupt[0].Reason, "exceeds")

	require.NoError(t, s.Remove(filepath.Join(root, "keep1")))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(5<<20), "overlong line is kept on rewrite")
}
