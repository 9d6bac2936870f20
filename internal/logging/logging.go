// Package logging builds the zap loggers used across fllm.
//
// Operational logs go to stderr. Console output is the default; set
// UNSTRUCTURED_LOGS=false to switch to JSON for log shipping.
package logging

import (
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configures a logger.
type Options struct {
	Debug  bool
	Format Format
	// Getenv is consulted for UNSTRUCTURED_LOGS when Format is empty.
	Getenv func(string) string
}

// New builds a sugared logger writing to stderr.
func New(opts Options) (*zap.SugaredLogger, error) {
	format := opts.Format
	if format == "" {
		format = formatFromEnv(opts.Getenv)
	}
	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	var cfg zap.Config
	if format == FormatJSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// OrNop returns logger, or a no-op logger when logger is nil.
func OrNop(logger *zap.SugaredLogger) *zap.SugaredLogger {
	if logger == nil {
		return Nop()
	}
	return logger
}

func formatFromEnv(getenv func(string) string) Format {
	if getenv == nil {
		getenv = os.Getenv
	}
	unstructured, err := strconv.ParseBool(getenv("UNSTRUCTURED_LOGS"))
	if err != nil {
		// unset or unparsable: keep human-readable output
		return FormatConsole
	}
	if unstructured {
		return FormatConsole
	}
	return FormatJSON
}
