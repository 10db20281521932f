// Package logging provides the leveled, named loggers used across the
// mapping core, modeled on viamrobotics-rdk's logging package but trimmed
// to what a library (not a long-running server) needs: no net appenders,
// no dynamic level registry, just named loggers over zap.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the subset of *zap.SugaredLogger the core calls. Keeping it as
// an interface lets tests swap in an observed logger without touching call
// sites.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Named(name string) Logger
}

type sugared struct {
	*zap.SugaredLogger
}

func (s sugared) Named(name string) Logger {
	return sugared{s.SugaredLogger.Named(name)}
}

func newConfig() zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  zapcore.OmitKey,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a named logger emitting Info+ to stdout.
func NewLogger(name string) Logger {
	cfg := newConfig()
	base, err := cfg.Build()
	if err != nil {
		// zap.Config.Build only fails on a malformed encoder config, which
		// newConfig never produces.
		panic(err)
	}
	return sugared{base.Named(name).Sugar()}
}

// NewDebugLogger returns a named logger emitting Debug+ to stdout.
func NewDebugLogger(name string) Logger {
	cfg := newConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	base, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return sugared{base.Named(name).Sugar()}
}

// NewTestLogger returns a logger that writes to the test's own log buffer.
func NewTestLogger(tb testing.TB) Logger {
	return sugared{zaptest.NewLogger(tb).Sugar()}
}
