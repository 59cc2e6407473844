package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewConsoleOnly(t *testing.T) {
	logger, err := New(Config{
		Level:   "info",
		Console: ConsoleConfig{Enabled: true, Format: FormatConsole},
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("test console logging")
}

func TestNewFileOnly(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := New(Config{
		Level: "debug",
		File: FileConfig{
			Enabled: true, Path: logPath, Format: "json",
			Rotation: RotationConfig{MaxSize: 10, MaxAge: 7, MaxBackups: 3},
		},
	})
	require.NoError(t, err)
	logger.Info("test file logging", zap.String("key", "value"))
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "test file logging")
	assert.Contains(t, string(content), "value")
}

func TestNewNoOutputsEnabled(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	assert.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "at least one output")
}

func TestNewFileEnabledNoPath(t *testing.T) {
	logger, err := New(Config{Level: "info", File: FileConfig{Enabled: true, Format: "json"}})
	assert.Error(t, err)
	assert.Nil(t, logger)
	assert.Contains(t, err.Error(), "file.path must be set")
}

func TestNewLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"info", zap.InfoLevel},
		{"warn", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"invalid", zap.InfoLevel},
		{"", zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "test.log")
			logger, err := New(Config{
				Level: tt.level,
				File:  FileConfig{Enabled: true, Path: logPath, Format: "json"},
			})
			require.NoError(t, err)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")
			logger.Sync()

			content, err := os.ReadFile(logPath)
			require.NoError(t, err)
			switch tt.expected {
			case zap.DebugLevel:
				assert.Contains(t, string(content), "debug message")
			case zap.InfoLevel:
				assert.NotContains(t, string(content), "debug message")
				assert.Contains(t, string(content), "info message")
			case zap.WarnLevel:
				assert.NotContains(t, string(content), "info message")
				assert.Contains(t, string(content), "warn message")
			case zap.ErrorLevel:
				assert.NotContains(t, string(content), "warn message")
				assert.Contains(t, string(content), "error message")
			}
		})
	}
}

func TestNewDefault(t *testing.T) {
	logger, err := NewDefault()
	require.NoError(t, err)
	logger.Debug("default logger test")
}

func TestTextFormatHasNoColorCodes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := New(Config{
		Level: "info",
		File:  FileConfig{Enabled: true, Path: logPath, Format: FormatText},
	})
	require.NoError(t, err)
	logger.Info("plain text line")
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "\x1b[")
	assert.Contains(t, string(content), "INFO")
}

func TestConsoleFormatHasColorCodes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := New(Config{
		Level: "info",
		File:  FileConfig{Enabled: true, Path: logPath, Format: FormatConsole},
	})
	require.NoError(t, err)
	logger.Info("colored line")
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "\x1b[")
}

func TestPerOutputLevelOverridesGlobal(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := New(Config{
		Level:   "warn",
		Console: ConsoleConfig{Enabled: true, Format: FormatConsole, Level: "error"},
		File:    FileConfig{Enabled: true, Path: logPath, Format: "json", Level: "debug"},
	})
	require.NoError(t, err)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "debug message")
	assert.Contains(t, string(content), "info message")
}

func TestResolveLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, resolveLevel("debug", zap.InfoLevel))
	assert.Equal(t, zap.WarnLevel, resolveLevel("", zap.WarnLevel))
}

func TestEnsureInfoLevelForShutdown(t *testing.T) {
	logger, err := New(Config{
		Level:   LevelError,
		Console: ConsoleConfig{Enabled: true, Format: FormatConsole},
	})
	require.NoError(t, err)
	assert.Equal(t, zap.ErrorLevel, logger.consoleLevel.Level())

	logger.EnsureInfoLevelForShutdown()
	assert.Equal(t, zap.InfoLevel, logger.consoleLevel.Level())
}
