package fsutil_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rip-project/rip/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeBytes(t *testing.T) {
	free, err := fsutil.FreeBytes(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestDeviceID_SameDirectory(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(a, nil, 0644))

	d1, err := fsutil.DeviceID(dir)
	require.NoError(t, err)
	d2, err := fsutil.DeviceID(a)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestLock_SerializesHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", ".record.lock")

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := fsutil.Lock(path)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			assert.NoError(t, l.Unlock())
		}()
	}
	wg.Wait()

	assert.FileExists(t, path)
	assert.LessOrEqual(t, maxInside, 1)
}

func TestLock_UnlockNil(t *testing.T) {
	var l *fsutil.FileLock
	assert.NoError(t, l.Unlock())
}

func TestLockOpen_LeavesFileOpen(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	l, err := fsutil.LockOpen(f)
	require.NoError(t, err)
	require.NoError(t, l.Unlock())

	_, err = f.WriteString("still open\n")
	assert.NoError(t, err)
}
