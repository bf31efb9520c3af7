// Package logger provides the shared structured logger for the agent.
package logger

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the process-wide logger instance. It writes to stderr so it
// never interleaves with the NDJSON event stream on stdout.
var Logger *log.Logger

func init() {
	Logger = log.New(os.Stderr)
	Logger.SetLevel(log.InfoLevel)
}

// Configure sets the log level from an explicit value, falling back to the
// AGENT_LOG_LEVEL environment variable.
func Configure(level string) {
	if level == "" {
		level = os.Getenv("AGENT_LOG_LEVEL")
	}
	Logger.SetLevel(parseLevel(level))
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
