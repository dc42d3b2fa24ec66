package common

import (
	"log/slog"
	"os"
	"strings"
)

type LoggingOpts struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level   string
	Debug   bool
	JSON    bool
	Service string
	Version string
}

func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	logLevel := ParseLogLevel(opts.Level)
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	if opts.JSON {
		log = slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	} else {
		log = slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	}

	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}

// ParseLogLevel maps env_logger style level names onto slog levels.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
