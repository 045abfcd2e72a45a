package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
// GEMINI_LOG_LEVEL controls the log level: debug, info, warn, error (default: info)
// GEMINI_LOG_FORMAT=json switches from the console writer to plain JSON lines.
// Logs always go to stderr; the MCP server owns stdout.
func Init() {
	InitWithWriter(os.Stderr)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("GEMINI_LOG_LEVEL")))

	if strings.EqualFold(os.Getenv("GEMINI_LOG_FORMAT"), "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
