package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestJSONFormatCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	log.WithRequestID("abc-123").Info("lookup", "patient_id", 42)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"abc-123"`)
	assert.Contains(t, out, `"patient_id":42`)
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "json")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	log.WithContext(context.Background()).Info("plain")
	assert.NotContains(t, buf.String(), "request_id")

	ctx := ContextWithRequestID(context.Background(), "req-9")
	assert.Equal(t, "req-9", RequestIDFromContext(ctx))
	log.WithContext(ctx).Info("tagged")
	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
}
