package zerologadapter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(zerolog.New(&buf))

	logger.Warn("refresh failed", "user_id", "user-1", "attempt", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "refresh failed", entry["message"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, float64(2), entry["attempt"])
}

func TestLoggerIgnoresDanglingKey(t *testing.T) {
	var buf bytes.Buffer
	logger := New(zerolog.New(&buf))

	logger.Info("logged in", "user_id")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "logged in", entry["message"])
	assert.NotContains(t, entry, "user_id")
}
