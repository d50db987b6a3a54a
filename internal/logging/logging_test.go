package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(&buf, "json", "warn"))
	t.Cleanup(func() { _ = SetLevelFromString("info") })

	With("cache").Info("hidden")
	With("cache").Warn("shown", "key", "rock")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "cache", record["component"])
	assert.Equal(t, "rock", record["key"])
	assert.False(t, Op().Enabled(context.Background(), slog.LevelInfo))
}

func TestInit_Invalid(t *testing.T) {
	before := Op()
	require.Error(t, Init(new(bytes.Buffer), "xml", "info"))
	require.Error(t, Init(new(bytes.Buffer), "text", "loud"))
	assert.Same(t, before, Op())
}

func TestSetLevelFromString(t *testing.T) {
	t.Cleanup(func() { _ = SetLevelFromString("info") })
	for name, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	} {
		require.NoError(t, SetLevelFromString(name))
		assert.Equal(t, want, logLevel.Level(), name)
	}
}
