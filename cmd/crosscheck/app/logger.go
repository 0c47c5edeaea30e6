package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/crosscheckhq/crosscheck/pkg/logging"
)

// NewLogger creates a configured logger. Log level precedence:
//  1. --log-level flag
//  2. -v/--verbose flag (debug)
//  3. -q/--quiet flag (warn)
//  4. LOG_LEVEL environment variable
//  5. Default (info)
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)

	logConfig := &logging.Config{
		Level:     level,
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		AddCaller: level == "debug" || level == "trace",
	}

	logger := logging.NewLoggerFromConfig(logConfig)
	logging.SetDefault(logger)
	return logger
}

func determineLogLevel(config *Config) string {
	if config.LogLevel != "" {
		return validateLogLevel(config.LogLevel)
	}
	if config.Verbose && config.Quiet {
		fmt.Fprintln(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet")
		return "warn"
	}
	if config.Verbose {
		return "debug"
	}
	if config.Quiet {
		return "warn"
	}
	return "info"
}

// validateLogLevel falls back to info on unrecognized input.
func validateLogLevel(level string) string {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return level
	default:
		fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using \"info\"\n", level)
		return "info"
	}
}
