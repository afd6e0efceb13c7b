package graveyard_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rip-project/rip/internal/graveyard"
	"github.com/rip-project/rip/internal/record"
	"github.com/rip-project/rip/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openGraveyard(t *testing.T) *graveyard.Graveyard {
	t.Helper()
	g, err := graveyard.Open(filepath.Join(t.TempDir(), "graveyard"), model.RecordBackendJSONL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestOpen_CreatesPrivateDirectory(t *testing.T) {
	g := openGraveyard(t)
	info, err := os.Stat(g.Root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(graveyard.DirMode), info.Mode().Perm())
	}
}

func TestOpen_ResolvesSymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	realDir := filepath.Join(dir, "realDir")
	require.NoError(t, os.Mkdir(realDir, 0700))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(realDir, link))

	g, err := graveyard.Open(link, model.RecordBackendJSONL, nil)
	require.NoError(t, err)
	defer g.Close()
	want, err := filepath.EvalSymlinks(realDir)
	require.NoError(t, err)
	assert.Equal(t, want, g.Root)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := graveyard.Open("", model.RecordBackendJSONL, nil)
	assert.Error(t, err)
}

func TestContainsAndIsAncestor(t *testing.T) {
	g := openGraveyard(t)
	assert.True(t, g.Contains(g.Root))
	assert.True(t, g.Contains(filepath.Join(g.Root, "a", "b")))
	assert.False(t, g.Contains(filepath.Dir(g.Root)))
	assert.True(t, g.IsAncestor(filepath.Dir(g.Root)))
	assert.True(t, g.IsAncestor(g.Root))
	assert.False(t, g.IsAncestor(filepath.Join(g.Root, "a")))
}

func TestMapGrave_MirrorsOriginal(t *testing.T) {
	g := openGraveyard(t)
	grave, err := g.MapGrave("/home/u/x.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(g.Root, "home", "u", "x.txt"), grave)
}

func TestMapGrave_DisambiguatesAgainstDiskAndRecords(t *testing.T) {
	g := openGraveyard(t)
	first := filepath.Join(g.Root, "home", "u", "x.txt")
	require.NoError(t, g.EnsureParent(first))
	require.NoError(t, os.WriteFile(first, nil, 0600))

	// ~1 is only a live record, its content went missing
	require.NoError(t, g.Records.Append(&model.GraveyardEntry{
		Original: "/home/u/x.txt", Grave: first + "~1", Kind: model.KindFile, BuriedAt: time.Now(),
	}))

	grave, err := g.MapGrave("/home/u/x.txt")
	require.NoError(t, err)
	assert.Equal(t, first+"~2", grave)
}

func TestMapGrave_NeverInsideALiveGrave(t *testing.T) {
	g := openGraveyard(t)
	dirGrave := filepath.Join(g.Root, "home", "u", "proj")
	require.NoError(t, os.MkdirAll(filepath.Join(dirGrave, "src"), 0700))
	require.NoError(t, g.Records.Append(&model.GraveyardEntry{
		Original: "/home/u/proj", Grave: dirGrave, Kind: model.KindDirectory, BuriedAt: time.Now(),
	}))

	grave, err := g.MapGrave("/home/u/proj/src")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(g.Root, "home", "u", "proj~1", "src"), grave)
}

func TestPruneEmptyParents(t *testing.T) {
	g := openGraveyard(t)
	deep := filepath.Join(g.Root, "a", "b", "c", "file")
	require.NoError(t, os.MkdirAll(filepath.Dir(deep), 0700))
	keep := filepath.Join(g.Root, "a", "sibling")
	require.NoError(t, os.WriteFile(keep, nil, 0600))

	g.PruneEmptyParents(deep)
	assert.NoDirExists(t, filepath.Join(g.Root, "a", "b"))
	assert.DirExists(t, filepath.Join(g.Root, "a"))
	assert.DirExists(t, g.Root)
}

func TestIsBookkeeping(t *testing.T) {
	for _, name := range []string{record.JSONLFileName, record.LockFileName, ".record.db-wal", ".audit.jsonl", ".rip-tmp-123"} {
		assert.True(t, graveyard.IsBookkeeping(name), name)
	}
	assert.False(t, graveyard.IsBookkeeping("home"))
}

func TestRemove(t *testing.T) {
	g := openGraveyard(t)
	require.NoError(t, os.WriteFile(filepath.Join(g.Root, "x"), nil, 0600))
	require.NoError(t, g.Remove())
	assert.NoDirExists(t, g.Root)
}
