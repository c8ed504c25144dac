package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipmix/internal/domain"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(domain.Settings{LogLevel: "info", LogFormat: "json"}, Options{Output: &buf})

	logger.Info("engine ready", "binary", "/usr/bin/ffmpeg")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine ready", entry["@message"])
	assert.Equal(t, "clipmix", entry["@module"])
	assert.Equal(t, "/usr/bin/ffmpeg", entry["binary"])
}

func TestNewHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(domain.Settings{LogLevel: "warn"}, Options{Name: "test", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewDefaultsUnknownLevelToInfo(t *testing.T) {
	logger := New(domain.Settings{LogLevel: "chatty"}, Options{Output: &bytes.Buffer{}})

	assert.Equal(t, hclog.Info, logger.GetLevel())
}
