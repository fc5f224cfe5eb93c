// Package logging builds the zap logger used by the CLI: a console core for
// humans and, optionally, a rotated JSON file core for machines.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Sentinel errors for logger construction.
var (
	ErrInvalidLevel = errors.New("invalid log level")
	ErrLogFile      = errors.New("cannot open log file")
)

// Config describes the logger outputs.
type Config struct {
	Level      string    // debug, info, warn, error
	Console    io.Writer // console output, nil disables it
	File       string    // JSON log file, empty disables it
	MaxSizeMB  int       // rotate after this size
	MaxBackups int       // rotated files kept
	MaxAgeDays int       // days rotated files are kept
}

// New builds a logger from cfg. The returned close function flushes and
// closes the log file; it is safe to call when no file is configured.
func New(cfg Config) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidLevel, cfg.Level)
	}
	atomic := zap.NewAtomicLevelAt(level)

	var cores []zapcore.Core
	closeFn := func() error { return nil }

	if cfg.Console != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig()),
			zapcore.Lock(zapcore.AddSync(cfg.Console)),
			atomic,
		))
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrLogFile, err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays, // days
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig()),
			zapcore.AddSync(rotator),
			atomic,
		))
		closeFn = rotator.Close
	}

	if len(cores) == 0 {
		return zap.NewNop(), closeFn, nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, func() error {
		_ = logger.Sync()
		return closeFn()
	}, nil
}

// consoleEncoderConfig prints "WARN  resource not inlined  {"ref": "a.png"}"
// without timestamps or callers.
func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "\t",
	}
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
