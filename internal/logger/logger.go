package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// ServiceName tags every log line and identifies the process to its backends.
const ServiceName = "exstem-assessment"

// Setup builds the process logger from LOG_LEVEL and LOG_FORMAT ("json" or
// "pretty") and installs it as the zerolog/log global, which the HTTP error
// mapper writes to. Caller locations are only added at debug and below.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.DurationFieldUnit = time.Millisecond

	ctx := zerolog.New(output(format)).With().
		Timestamp().
		Str("service", ServiceName)
	if lvl <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}

	log := ctx.Logger()
	zlog.Logger = log
	return log
}

func output(format string) io.Writer {
	if format != "pretty" {
		return os.Stdout
	}
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
}
