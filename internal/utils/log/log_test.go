package log

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/babarot/kura/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "", want: InfoLevel},
		{in: "debug", want: DebugLevel},
		{in: "warn", want: WarnLevel},
		{in: "error", want: ErrorLevel},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(UseOutput(&buf), UseLevel(DebugLevel), UseAttrs("run", "abc"))
	l.Debug("hello", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "run=abc")
	assert.Contains(t, out, "key=value")
}

func TestNotice(t *testing.T) {
	var buf bytes.Buffer
	l := New(UseOutput(&buf), UseLevel(ErrorLevel))
	l.Warn("dropped")
	Notice(context.Background(), l, "evicted")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "evicted")
}

func TestRotateWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kura.log")
	w, err := NewRotateWriter(path, config.RotationConfig{MaxSize: "10B", MaxFiles: 2})
	require.NoError(t, err)
	defer w.Close()

	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte("0123456789"))
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var backups int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "kura.log.") {
			backups++
		}
	}
	assert.Equal(t, 2, backups)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestRotateWriterBadSize(t *testing.T) {
	_, err := NewRotateWriter(filepath.Join(t.TempDir(), "x.log"), config.RotationConfig{MaxSize: "lots"})
	assert.Error(t, err)
}

func TestFromConfigDisabled(t *testing.T) {
	l, closer, err := FromConfig(config.LoggingConfig{Enabled: false, Level: "info"}, NewRunID(), false)
	require.NoError(t, err)
	assert.NotNil(t, l)
	assert.NoError(t, closer.Close())

	_, _, err = FromConfig(config.LoggingConfig{Level: "loud"}, "x", false)
	assert.Error(t, err)
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(UseOutput(&buf), UseFormatter(formatter("json")), UseAttrs("run", "abc"))
	l.Info("hello", "provider", "drive")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "drive", rec["provider"])
	assert.Equal(t, "abc", rec["run"])
}
