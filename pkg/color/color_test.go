package color

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableDisable(t *testing.T) {
	Enable()
	assert.True(t, Enabled())
	Disable()
	assert.False(t, Enabled())
	Enable()
	assert.True(t, Enabled())
}

func TestFormattersEnabled(t *testing.T) {
	Enable()
	defer Enable()

	tests := []struct {
		name string
		got  string
		seq  string
	}{
		{"success", Success("ok"), "\x1b[32m"},
		{"error", Error("ok"), "\x1b[31m"},
		{"warning", Warning("ok"), "\x1b[33m"},
		{"header", Header("ok"), "\x1b[1m"},
		{"dim", Dim("ok"), "\x1b[2m"},
		{"original", Original("ok"), "\x1b[36m"},
		{"grave", Grave("ok"), "\x1b[90m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.got, tt.seq+"ok\x1b["), "got %q", tt.got)
			assert.True(t, strings.HasSuffix(tt.got, "m"), "got %q", tt.got)
		})
	}
	assert.True(t, strings.HasPrefix(Prompt("sure?"), "\x1b[1;33msure?\x1b["))
}

func TestFormattersDisabled(t *testing.T) {
	Disable()
	defer Enable()

	assert.Equal(t, "ok", Success("ok"))
	assert.Equal(t, "/tmp/x", Original("/tmp/x"))
	assert.Equal(t, "/g/tmp/x", Grave("/g/tmp/x"))
	assert.Equal(t, "sure?", Prompt("sure?"))
	assert.Equal(t, "3 items", Successf("%d items", 3))
	assert.Equal(t, "bad 1", Errorf("bad %d", 1))
	assert.Equal(t, "careful x", Warningf("careful %s", "x"))
}

func TestInit_RedirectedOutputIsPlain(t *testing.T) {
	Enable()
	defer Enable()

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()

	initFor(f, false)
	assert.False(t, Enabled())
	assert.Equal(t, "/home/u/x", Original("/home/u/x"))
}

func TestInit_FlagDisables(t *testing.T) {
	Enable()
	defer Enable()

	initFor(os.Stdout, true)
	assert.False(t, Enabled())
}

func TestInit_NoColorEnv(t *testing.T) {
	Enable()
	defer Enable()
	t.Setenv("NO_COLOR", "1")

	initFor(os.Stdout, false)
	assert.False(t, Enabled())
}
