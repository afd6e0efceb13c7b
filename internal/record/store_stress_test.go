package record_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rip-project/rip/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStress_SeparateHandles models many rip invocations sharing one
// graveyard: every worker opens its own store handle, appends, then removes
// half of what it appended.
//
// Run with: go test -v -run Stress ./internal/record/
func TestStress_SeparateHandles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	const workers, perWorker = 8, 50

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			root := t.TempDir()
			first, err := record.Open(root, backend, nil)
			require.NoError(t, err)
			require.NoError(t, first.Close())

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					s, err := record.Open(root, backend, nil)
					if !assert.NoError(t, err) {
						return
					}
					defer s.Close()
					for i := 0; i < perWorker; i++ {
						e := entry(root, fmt.Sprintf("/w%d/f%d", w, i), t0)
						e.ID = fmt.Sprintf("w%d-%d", w, i)
						assert.NoError(t, s.Append(e))
					}
					for i := 0; i < perWorker; i += 2 {
						assert.NoError(t, s.Remove(filepath.Join(root, fmt.Sprintf("w%d/f%d", w, i))))
					}
				}(w)
			}
			wg.Wait()

			s, err := record.Open(root, backend, nil)
			require.NoError(t, err)
			defer s.Close()
			entries, corrupt, err := s.Load()
			require.NoError(t, err)
			assert.Empty(t, corrupt)
			assert.Len(t, entries, workers*perWorker/2)
		})
	}
}
