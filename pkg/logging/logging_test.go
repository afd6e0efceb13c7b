package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuffered(level Level, format Format) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(level)
	l.SetOutput(&buf)
	l.SetFormat(format)
	return l, &buf
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level Level
		want  []string
	}{
		{LevelDebug, []string{"d", "i", "w", "e"}},
		{LevelInfo, []string{"i", "w", "e"}},
		{LevelWarn, []string{"w", "e"}},
		{LevelError, []string{"e"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			l, buf := newBuffered(tt.level, FormatJSON)
			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")

			var got []string
			for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
				var e LogEntry
				require.NoError(t, json.Unmarshal([]byte(line), &e))
				got = append(got, e.Message)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_JSONFields(t *testing.T) {
	l, buf := newBuffered(LevelInfo, FormatJSON)
	l.WithFields(map[string]any{"op": "bury"}).Info("moved", map[string]any{"method": "rename"})

	var e LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, LevelInfo, e.Level)
	assert.Equal(t, "moved", e.Message)
	assert.Equal(t, "bury", e.Fields["op"])
	assert.Equal(t, "rename", e.Fields["method"])
	assert.NotEmpty(t, e.Timestamp)
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := newBuffered(LevelInfo, FormatText)
	l.Warn("copy fallback", map[string]any{"path": "/a b", "bytes": 12})
	assert.Equal(t, "rip: warn: copy fallback bytes=12 path=\"/a b\"\n", buf.String())
}

func TestLogger_ErrorErr(t *testing.T) {
	l, buf := newBuffered(LevelError, FormatJSON)
	l.ErrorErr("failed", errors.New("boom"), map[string]any{"op": "restore"})

	var e LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "boom", e.Fields["error"])
	assert.Equal(t, "restore", e.Fields["op"])
}

func TestLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	l, buf := newBuffered(LevelInfo, FormatJSON)
	_ = l.WithFields(map[string]any{"child": true})
	l.Info("parent")

	var e LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Nil(t, e.Fields)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "warning": LevelWarn, " error ": LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)
	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestGlobal(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	l, buf := newBuffered(LevelDebug, FormatText)
	SetGlobal(l)
	Debug("hello")
	assert.Contains(t, buf.String(), "rip: debug: hello")
}
