package logger

import (
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"price-relay/internal/config"
)

func TestNew(t *testing.T) {
	l, err := New(config.LogConfig{Level: "DEBUG", Encoding: "json"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(config.LogConfig{Level: "nonsense", Encoding: "console", Sampling: true})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var cl cron.Logger = NewCronLogger(zap.New(core))

	cl.Info("schedule", "entry", 1)
	cl.Error(errors.New("boom"), "panic", "job", "submission")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "cron", entries[0].LoggerName)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, "submission", entries[1].ContextMap()["job"])
}

func TestCronLogger_SkipIsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var cl cron.Logger = NewCronLogger(zap.New(core))

	cl.Info("skip")
	cl.Info("wake", "now", "x")

	entries := logs.All()
	require.Len(t, entries, 1, "routine messages stay below info")
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}
