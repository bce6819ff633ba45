// Package logging provides the logger capability used by the device
// runtime and the zap based sinks behind it.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is satisfied by *zap.Logger. The runtime only depends on this
// interface so the sink can be swapped.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
}

var _ Logger = (*zap.Logger)(nil)

// NewConsole logs human readable lines to stderr.
func NewConsole(level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if err := setLevel(&cfg, level); err != nil {
		return nil, err
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// NewFile appends JSON lines to path.
func NewFile(path, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := setLevel(&cfg, level); err != nil {
		return nil, err
	}
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// New picks the file sink when path is set and the console otherwise.
func New(path, level string) (*zap.Logger, error) {
	if path != "" {
		return NewFile(path, level)
	}
	return NewConsole(level)
}

func NewNop() Logger {
	return zap.NewNop()
}

func setLevel(cfg *zap.Config, level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return nil
}
