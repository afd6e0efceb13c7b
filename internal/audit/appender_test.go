package audit_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rip-project/rip/internal/audit"
	"github.com/rip-project/rip/pkg/errclass"
	"github.com/rip-project/rip/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAppender_AppendCreatesJSONL(t *testing.T) {
	root := t.TempDir()
	a := audit.ForGraveyard(root)
	require.NoError(t, a.Append(audit.Event{
		Type: model.EventTypeBury, Original: "/home/u/x.txt", Grave: root + "/home/u/x.txt",
		Details: map[string]any{"method": "rename", "size": 12},
	}))

	data, err := os.ReadFile(filepath.Join(root, audit.FileName))
	require.NoError(t, err)
	var record model.AuditRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &record))
	assert.Equal(t, model.EventTypeBury, record.EventType)
	assert.Equal(t, "/home/u/x.txt", record.Original)
	assert.Empty(t, record.PrevHash)
	assert.Len(t, string(record.RecordHash), 64)
}

func TestFileAppender_HashChain(t *testing.T) {
	a := audit.ForGraveyard(t.TempDir())
	require.NoError(t, a.Append(audit.Event{Type: model.EventTypeBury, Original: "/a"}))
	first, err := a.GetLastRecordHash()
	require.NoError(t, err)
	require.NoError(t, a.Append(audit.Event{Type: model.EventTypeUnbury, Original: "/a"}))

	records, err := a.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[1].PrevHash)

	n, err := a.Verify()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileAppender_VerifyDetectsTampering(t *testing.T) {
	root := t.TempDir()
	a := audit.ForGraveyard(root)
	require.NoError(t, a.Append(audit.Event{Type: model.EventTypeBury, Original: "/secret"}))
	require.NoError(t, a.Append(audit.Event{Type: model.EventTypePurge, Original: "/secret"}))

	path := filepath.Join(root, audit.FileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "/secret", "/public", 1)), 0600))

	n, err := a.Verify()
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrAuditChainBroken)
	assert.Equal(t, 0, n)
}

func TestFileAppender_VerifyDetectsRemovedRecord(t *testing.T) {
	root := t.TempDir()
	a := audit.ForGraveyard(root)
	for _, p := range []string{"/1", "/2", "/3"} {
		require.NoError(t, a.Append(audit.Event{Type: model.EventTypeBury, Original: p}))
	}
	path := filepath.Join(root, audit.FileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.SplitAfter(string(data), "\n")
	require.NoError(t, os.WriteFile(path, []byte(lines[0]+lines[2]), 0600))

	n, err := a.Verify()
	assert.ErrorIs(t, err, errclass.ErrAuditChainBroken)
	assert.Equal(t, 1, n)
}

func TestFileAppender_MissingLog(t *testing.T) {
	a := audit.ForGraveyard(t.TempDir())
	h, err := a.GetLastRecordHash()
	require.NoError(t, err)
	assert.Empty(t, h)
	n, err := a.Verify()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileAppender_ConcurrentAppends(t *testing.T) {
	a := audit.ForGraveyard(t.TempDir())
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Append(audit.Event{Type: model.EventTypeBury}))
		}()
	}
	wg.Wait()

	n, err := a.Verify()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}
