// Package logging builds the zap logger shared by the CLI, the engine and the scenarios.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLevel is used when no level is configured
const DefaultLevel = "info"

// New returns a logger writing to stderr at the given level.
// development selects the console encoder; otherwise logs are JSON.
func New(level string, development bool) (*zap.Logger, error) {
	return NewWithWriter(os.Stderr, level, development)
}

// NewWithWriter is New with the output redirected to w
func NewWithWriter(w io.Writer, level string, development bool) (*zap.Logger, error) {
	cfg, err := newConfig(level, development)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	}
	sink := zapcore.Lock(zapcore.AddSync(w))
	core := zapcore.NewCore(encoder, sink, cfg.Level)

	opts := []zap.Option{
		zap.ErrorOutput(sink),
		zap.AddCaller(),
		zap.Fields(zap.String("service", "chatload")),
	}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	} else {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(core, opts...), nil
}

func newConfig(level string, development bool) (zap.Config, error) {
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// Every failed request gets its own line, so identical messages must not be sampled away
	cfg.Sampling = nil
	return cfg, nil
}
