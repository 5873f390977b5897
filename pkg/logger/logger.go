// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level       string
	Format      string
	Development bool
	OutputPaths []string

	// Service, Version and Environment are attached to every entry when set.
	Service     string
	Version     string
	Environment string

	// SampleInitial and SampleThereafter throttle repeated messages per
	// second outside development. Zero disables sampling.
	SampleInitial    int
	SampleThereafter int
}

// New creates a new logger instance. Unknown levels fall back to info and
// an empty output list writes to stdout.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	sink, _, err := zap.Open(outputs(cfg.OutputPaths)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open log outputs: %w", err)
	}

	var core zapcore.Core = zapcore.NewCore(newEncoder(cfg), sink, level)
	if !cfg.Development && cfg.SampleInitial > 0 {
		core = zapcore.NewSamplerWithOptions(core, time.Second, cfg.SampleInitial, cfg.SampleThereafter)
	}

	options := []zap.Option{zap.AddCaller(), zap.Fields(serviceFields(cfg)...)}
	if cfg.Development {
		options = append(options, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		options = append(options, zap.AddStacktrace(zapcore.DPanicLevel))
	}

	return zap.New(core, options...), nil
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func newEncoder(cfg Config) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	if cfg.Development {
		ec = zap.NewDevelopmentEncoderConfig()
	}
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if cfg.Format == "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func outputs(paths []string) []string {
	if len(paths) == 0 {
		return []string{"stdout"}
	}
	return paths
}

func serviceFields(cfg Config) []zap.Field {
	var fields []zap.Field
	if cfg.Service != "" {
		fields = append(fields, zap.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		fields = append(fields, zap.String("version", cfg.Version))
	}
	if cfg.Environment != "" {
		fields = append(fields, zap.String("env", cfg.Environment))
	}
	return fields
}
