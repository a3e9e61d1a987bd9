package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("should not appear")
	assert.Zero(t, buf.Len())

	log.Warn("should appear", "file", "a.pnt")
	assert.Contains(t, buf.String(), "should appear")
	assert.Contains(t, buf.String(), `"file":"a.pnt"`)
}

func TestTextWith(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelDebug).With("component", "validator")
	log.Debug("stage passed", "stage", "header")

	assert.Contains(t, buf.String(), "component=validator")
	assert.Contains(t, buf.String(), "stage=header")
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	// Must not panic and must not write anywhere.
	Discard().Error("ignored")
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), JSON(&buf, slog.LevelInfo))
	FromContext(ctx).Info("roundtrip test")
	assert.Contains(t, buf.String(), "roundtrip test")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, ParseLevel(tc.input), "ParseLevel(%q)", tc.input)
	}
}
