package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"", FormatText, FormatJSON, FormatPretty, "JSON"} {
		var buf bytes.Buffer
		log, err := New(&buf, format, "info")
		require.NoError(t, err, format)
		log.Info("move", "turn", 3)
		assert.Contains(t, buf.String(), "move", format)
		assert.Contains(t, buf.String(), "turn", format)
	}

	_, err := New(&bytes.Buffer{}, "xml", "info")
	assert.ErrorContains(t, err, "unknown log format")
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, FormatJSON, "WARN")
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, err = New(&buf, FormatJSON, "loud")
	assert.ErrorContains(t, err, "parse log level")
}

func decodeOne(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(buf).Decode(&m), buf.String())
	return m
}

func TestPrettyJSONHandler_Attrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyJSONHandler(&buf, nil))

	log.With("game_id", "g1").WithGroup("search").Info("decided",
		"move", "up",
		"depth", 4,
		"elapsed", 15*time.Millisecond,
		"score", math.Inf(1),
		"err", errors.New("boom"),
		slog.Group("root", "legal", 2),
	)

	m := decodeOne(t, &buf)
	assert.Equal(t, "decided", m["msg"])
	assert.Equal(t, "INFO", m["level"])
	assert.Equal(t, "g1", m["game_id"])

	search, ok := m["search"].(map[string]any)
	require.True(t, ok, "search group missing: %v", m)
	assert.Equal(t, "up", search["move"])
	assert.Equal(t, float64(4), search["depth"])
	assert.Equal(t, "15ms", search["elapsed"])
	assert.Equal(t, "+Inf", search["score"])
	assert.Equal(t, "boom", search["err"])
	assert.Equal(t, map[string]any{"legal": float64(2)}, search["root"])
}

func TestPrettyJSONHandler_IndentsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn, AddSource: true}))

	log.Info("skipped")
	assert.Zero(t, buf.Len())

	log.Warn("kept", "n", 1)
	out := buf.String()
	assert.True(t, strings.Contains(out, "\n  \""), "expected indented output, got %q", out)

	m := decodeOne(t, &buf)
	assert.Equal(t, "kept", m["msg"])
	assert.Contains(t, m["source"], "logging_test.go:")
}
