package logging

import (
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. format "console" selects the human
// readable development encoder; anything else logs JSON. Extra cores,
// such as a capture core, are teed after the output core.
func New(level zapcore.Level, format string, extra ...zapcore.Core) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return logger, nil
	}
	return logger.WithOptions(zap.WrapCore(func(out zapcore.Core) zapcore.Core {
		return zapcore.NewTee(append([]zapcore.Core{out}, extra...)...)
	})), nil
}

// ParseLevel converts "debug", "info", "warn", "error" or "fatal" to a zap
// level. Unknown strings default to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// SlogLevel maps a zap level onto the slog level of the same name.
func SlogLevel(l zapcore.Level) slog.Level {
	return slog.Level(int(l) * 4)
}
