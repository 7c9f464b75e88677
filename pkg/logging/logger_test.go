package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromZapFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap("test-component", zap.New(core))

	logger.Infof("Info message %d", 123)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Info message 123", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "test-component", fields["component"])
	assert.Equal(t, GetSessionID(), fields["session_id"])
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap("test", zap.New(core))

	logger.Debugf("Debug message")
	logger.Infof("Info message")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	expected := []zapcore.Level{
		zapcore.DebugLevel,
		zapcore.InfoLevel,
		zapcore.WarnLevel,
		zapcore.ErrorLevel,
	}
	entries := logs.All()
	require.Len(t, entries, len(expected))
	for i, level := range expected {
		assert.Equal(t, level, entries[i].Level)
	}
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := FromZap("test", zap.New(core)).With("attempt", 3)

	logger.Infof("hello")

	require.Equal(t, 1, logs.Len())
	assert.EqualValues(t, 3, logs.All()[0].ContextMap()["attempt"])
	assert.Equal(t, "test", logger.Component())
}

func TestMultipleComponentsShareSessionID(t *testing.T) {
	logger1 := NewLogger("component1")
	logger2 := NewLogger("component2")

	assert.Equal(t, logger1.SessionID(), logger2.SessionID())
	assert.NotEmpty(t, logger1.SessionID())
	// UUID format
	assert.Equal(t, 4, strings.Count(logger1.SessionID(), "-"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitWritesFile(t *testing.T) {
	baseMu.RLock()
	orig := base
	baseMu.RUnlock()
	defer SetBase(orig)

	logPath := filepath.Join(t.TempDir(), "extkeeper.log")
	sync, err := Init(Options{Level: "debug", Format: "json", File: logPath})
	require.NoError(t, err)

	NewLogger("file-test").Warnf("written to file")
	_ = sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "written to file")
	assert.Contains(t, string(content), `"component":"file-test"`)
}

func TestInitRejectsInvalidOptions(t *testing.T) {
	_, err := Init(Options{Format: "xml"})
	assert.Error(t, err)

	_, err = Init(Options{Level: "verbose"})
	assert.Error(t, err)
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	assert.NotPanics(t, func() {
		logger.Errorf("nothing to see")
	})
}
