package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/travel-log/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "warn", "json")

	log.Info("dropped")
	log.Warn("kept", "key", "value")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "value", line["key"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "debug", "TEXT")

	log.Debug("hello", "n", 1)

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNew_UnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "loud", "json")

	log.Debug("hidden")
	assert.Empty(t, buf.String())
	log.Info("shown")
	assert.NotEmpty(t, buf.String())
}
