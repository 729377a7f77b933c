package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New("")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = New("chatty")
	assert.Error(t, err)
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(zapcore.WarnLevel)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level.Level())
	assert.True(t, cfg.DisableStacktrace)
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
}
