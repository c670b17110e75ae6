package logger_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikbrunner/gorg/internal/logger"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf, Format: "json", Level: slog.LevelInfo})

	log.Info("moved folder", "src", "Trip", "relocated", 3)

	out := buf.String()
	assert.Contains(t, out, `"msg":"moved folder"`)
	assert.Contains(t, out, `"level":"INFO"`)
	assert.Contains(t, out, `"relocated":3`)
}

func TestNew_PrettyIsDefault(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf, Level: slog.LevelInfo})

	log.Warn("row failed", "id", "content://media/external/images/media/4", "error", "disk full")

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "row failed")
	assert.Contains(t, out, "id=content://media/external/images/media/4")
	assert.Contains(t, out, `error="disk full"`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf, Level: slog.LevelWarn})

	log.Debug("debug")
	log.Info("info")
	assert.Empty(t, buf.String())

	log.Error("boom")
	assert.Contains(t, buf.String(), "ERR")
	assert.Contains(t, buf.String(), "boom")
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Writer: &buf, Level: slog.LevelDebug})

	log.With("op", "copy").WithGroup("row").Debug("copied", "name", "a.jpg")

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "op=copy")
	assert.Contains(t, out, "row.name=a.jpg")
}

func TestDiscard(t *testing.T) {
	log := logger.Discard()
	require.NotNil(t, log)
	assert.False(t, log.Enabled(t.Context(), slog.LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.ParseLevel(tt.input))
		})
	}
}
