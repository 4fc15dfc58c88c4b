package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the shared logger used throughout the project.
var Log = log.Logger

var file *lumberjack.Logger

// Configure sets the global log level and output format. When path is not
// empty, JSON lines are also written to a size-rotated file at that path.
func Configure(level, path string) {
	zerolog.SetGlobalLevel(parseLevel(level))

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if path != "" {
		if file != nil {
			_ = file.Close()
		}
		file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = zerolog.MultiLevelWriter(out, file)
	}
	Log = zerolog.New(out).With().Timestamp().Logger()
}

// Close flushes and closes the log file, if any.
func Close() {
	if file != nil {
		_ = file.Close()
		file = nil
	}
}

// parseLevel converts a string to a zerolog level.
// Accepts: all, debug, info, warn, warning, error, fatal, none.
// Unknown values default to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "all", "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "none", "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	Configure(os.Getenv("LOG_LEVEL"), "")
}
