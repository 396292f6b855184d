package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLoggerIsUsableWithoutInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("sem init", zap.String("k", "v"))
		Debug("sem init")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("qualquer"))
}

func TestInitWithFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	logFile := filepath.Join(t.TempDir(), "b3.log")
	require.NoError(t, InitWithOptions(Options{Level: "info", File: logFile}))

	Info("pregão processado", zap.String("file_code", "PR250102"))
	Close()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PR250102")
}

func TestEncoding(t *testing.T) {
	assert.Equal(t, "json", encoding(Options{}))
	assert.Equal(t, "console", encoding(Options{Development: true}))
	assert.Equal(t, "json", encoding(Options{Development: true, Format: "json"}))
	assert.Equal(t, "console", encoding(Options{Format: "console"}))
	assert.Equal(t, "json", encoding(Options{Format: "xml"}))
}

func TestInitWithOptions_Format(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	assert.NoError(t, InitWithOptions(Options{Level: "debug", Format: "console"}))
	assert.True(t, Log.Core().Enabled(zapcore.DebugLevel))
}

func TestWithContext(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	core, logs := observer.New(zapcore.InfoLevel)
	Log = zap.New(core)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))

	WithContext(ctx).Info("com id")
	WithContext(context.Background()).Info("sem id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}
