// Package logging builds the zap loggers used across the engine: a console
// sink for interactive runs and an optional rotating file sink for daemon
// deployments.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log level constants accepted in Config.Level and the per-output overrides.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Output format constants.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatText    = "text"
)

// Config describes how the engine should log (spec's ambient logging
// surface). It is embedded directly in internal/config.Config.
type Config struct {
	Level   string       `yaml:"level"`
	Console ConsoleConfig `yaml:"console"`
	File    FileConfig   `yaml:"file"`
}

type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileConfig struct {
	Enabled  bool         `yaml:"enabled"`
	Path     string       `yaml:"path"`
	Format   string       `yaml:"format"`
	Level    string       `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// Default returns a Config suitable for local/interactive runs: console
// output at debug level, no file sink.
func Default() Config {
	return Config{
		Level: LevelDebug,
		Console: ConsoleConfig{
			Enabled: true,
			Format:  FormatConsole,
		},
	}
}

// DynamicLogger wraps zap.Logger with the ability to raise both sinks to
// info level on demand, so shutdown sequences stay visible even when the
// configured level is warn or error.
type DynamicLogger struct {
	*zap.Logger
	consoleLevel *zap.AtomicLevel
	fileLevel    *zap.AtomicLevel
	config       Config
}

// EnsureInfoLevelForShutdown raises both sinks to info if either is
// currently coarser, so shutdown logs are never silently dropped.
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false
	if dl.consoleLevel != nil && dl.consoleLevel.Level() > zap.InfoLevel {
		dl.consoleLevel.SetLevel(zap.InfoLevel)
		changed = true
	}
	if dl.fileLevel != nil && dl.fileLevel.Level() > zap.InfoLevel {
		dl.fileLevel.SetLevel(zap.InfoLevel)
		changed = true
	}
	if changed {
		dl.Info("switched to info level for shutdown visibility")
	}
}

// New builds a DynamicLogger from Config. At least one of Console/File must
// be enabled.
func New(config Config) (*DynamicLogger, error) {
	globalLevel := parseLevel(config.Level)

	var cores []zapcore.Core
	var consoleLevel, fileLevel *zap.AtomicLevel

	if config.Console.Enabled {
		level := zap.NewAtomicLevelAt(resolveLevel(config.Console.Level, globalLevel))
		consoleLevel = &level
		cores = append(cores, zapcore.NewCore(newEncoder(config.Console.Format), zapcore.Lock(os.Stdout), consoleLevel))
	}

	if config.File.Enabled {
		if config.File.Path == "" {
			return nil, fmt.Errorf("logging: file.path must be set when file logging is enabled")
		}
		level := zap.NewAtomicLevelAt(resolveLevel(config.File.Level, globalLevel))
		fileLevel = &level
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.Rotation.MaxSize,
			MaxAge:     config.File.Rotation.MaxAge,
			MaxBackups: config.File.Rotation.MaxBackups,
			Compress:   config.File.Rotation.Compress,
		})
		cores = append(cores, zapcore.NewCore(newEncoder(config.File.Format), writer, fileLevel))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("logging: at least one output (console or file) must be enabled")
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	return &DynamicLogger{
		Logger:       zap.New(core),
		consoleLevel: consoleLevel,
		fileLevel:    fileLevel,
		config:       config,
	}, nil
}

// NewDefault builds a logger from Default(), used before a config file has
// been loaded (e.g. to report config-loading errors themselves).
func NewDefault() (*DynamicLogger, error) {
	return New(Default())
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelInfo:
		return zap.InfoLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func resolveLevel(outputLevel string, global zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLevel(outputLevel)
	}
	return global
}

func newEncoder(format string) zapcore.Encoder {
	if format == FormatJSON {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	if format == FormatText {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}
