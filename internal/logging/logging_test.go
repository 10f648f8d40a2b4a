package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/omochice/toy-socket-relay/internal/config"
	"github.com/omochice/toy-socket-relay/internal/logging"
)

func TestNew_QuietWithoutFile(t *testing.T) {
	logger, err := logging.New(config.LogConfig{Level: "debug"}, true)
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNew_Level(t *testing.T) {
	logger, err := logging.New(config.LogConfig{Level: "warn"}, false)
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")

	logger, err := logging.New(config.LogConfig{Level: "info", File: path}, true)
	require.NoError(t, err)

	logger.Info("connection opened")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "connection opened")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := logging.New(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}
