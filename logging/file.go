package logging

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes where and how logs are persisted on disk in addition to stdout.
type FileConfig struct {
	Level      string `json:"level" yaml:"level" env:"LEVEL"`
	Path       string `json:"file" yaml:"file" env:"FILE"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" env:"MAX_AGE_DAYS"`
}

// NewFileLogger returns a logger that writes console output to stdout and, if a path is
// configured, JSON lines to a size rotated file. The returned closer flushes and closes
// the file.
func NewFileLogger(name string, cfg FileConfig) (Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	atomicLevel := zap.NewAtomicLevelAt(level)

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(newEncoderConfig(zapcore.CapitalColorLevelEncoder)),
		zapcore.Lock(os.Stdout),
		atomicLevel,
	)
	if cfg.Path == "" {
		logger := zap.New(consoleCore, zap.AddCaller()).Sugar().Named(name)
		return logger, func() error { return nil }, nil
	}

	roller := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(newEncoderConfig(zapcore.CapitalLevelEncoder)),
		zapcore.AddSync(roller),
		atomicLevel,
	)
	logger := zap.New(zapcore.NewTee(consoleCore, fileCore), zap.AddCaller()).Sugar().Named(name)
	closer := func() error {
		// Sync on stdout fails on some terminals; only the file matters here.
		_ = logger.Sync() //nolint:errcheck
		return errors.Wrap(roller.Close(), "closing log file")
	}
	return logger, closer, nil
}
