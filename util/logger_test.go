package util

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLogLevel_ZapLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{0, zapcore.ErrorLevel},
		{1, zapcore.WarnLevel},
		{2, zapcore.InfoLevel},
		{3, zapcore.DebugLevel},
		{7, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LogLevel(tt.verbosity).ZapLevel(), "verbosity %d", tt.verbosity)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(LogOptions{Verbosity: 3, Output: &buf})
	require.NoError(t, err)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Debug("d")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4, buf.String())
	for i, level := range []string{"ERROR", "WARN", "INFO", "DEBUG"} {
		assert.Contains(t, lines[i], level)
	}
}

func TestNewLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(LogOptions{Output: &buf})
	require.NoError(t, err)

	l.Info("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(LogOptions{Verbosity: 2, Format: "json", Output: &buf})
	require.NoError(t, err)

	l.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestNewLogger_UnknownFormat(t *testing.T) {
	_, err := NewLogger(LogOptions{Format: "xml"})
	assert.Error(t, err)
}

func TestNewLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wire.log")
	var buf bytes.Buffer
	l, err := NewLogger(LogOptions{Output: &buf, File: path})
	require.NoError(t, err)

	l.Debug("recorded in file only")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "recorded in file only")
	assert.Empty(t, buf.String())
}
