package logging

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLogger(t *testing.T) {
	err := InitLogger()
	require.NoError(t, err)
	assert.NotNil(t, Logger)
	assert.NotNil(t, Logger.logger)
}

func TestInitLogger_LogLevels(t *testing.T) {
	for _, level := range []string{"debug", "warn", "not-a-level"} {
		t.Run(level, func(t *testing.T) {
			os.Setenv("LOG_LEVEL", level)
			defer os.Unsetenv("LOG_LEVEL")

			require.NoError(t, InitLogger())
			assert.NotNil(t, Logger)
		})
	}
}

func TestSafeLogger_NilSafety(t *testing.T) {
	var nilSafe *SafeLogger
	empty := &SafeLogger{}

	for _, l := range []*SafeLogger{nilSafe, empty} {
		l.Debug("test")
		l.Info("test")
		l.Warn("test")
		l.Error("test")
		assert.NoError(t, l.Sync())
		assert.NotNil(t, l.Unwrap())
	}

	assert.Nil(t, nilSafe.With(zap.String("k", "v")))
	assert.Equal(t, empty, empty.With(zap.String("k", "v")))
	assert.Equal(t, empty, empty.Named("x"))
}

func TestSafeLogger_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := NewSafeLogger(zap.New(core))

	logger.With(zap.String("cedula", "123***")).Named("personas").Info("registered")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "registered", entry.Message)
	assert.Equal(t, "personas", entry.LoggerName)
	assert.Equal(t, "123***", entry.ContextMap()["cedula"])
}

func TestSafeLogger_Unwrap(t *testing.T) {
	zapLogger := zap.NewNop()
	logger := &SafeLogger{logger: zapLogger}

	assert.Equal(t, zapLogger, logger.Unwrap())
}

func TestGlobalLoggerUsableBeforeInit(t *testing.T) {
	assert.NotNil(t, Logger)
	Logger.Info("test message")
}
