package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavaJover/shvark-smm-service/internal/config"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smm.log")
	log, closer, err := New(config.LogConfig{LogLevel: "warn", LogFormat: "json", LogOutput: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("provider slow", "provider_id", "p1")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "provider slow", rec["msg"])
	assert.Equal(t, "p1", rec["provider_id"])
	assert.Equal(t, "WARN", rec["level"])
}

func TestNew_Defaults(t *testing.T) {
	log, closer, err := New(config.LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.NoError(t, closer.Close())

	_, _, err = New(config.LogConfig{LogFormat: "xml"})
	assert.Error(t, err)
	_, _, err = New(config.LogConfig{LogLevel: "loud"})
	assert.Error(t, err)
}
