// Package logging configures the process-wide zerolog logger and hands out
// component-scoped loggers.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger based on verbosity level.
// Output goes to w (stderr when nil) through a console writer.
//
//	-1 -> disabled, 0 -> warn, 1 -> info, 2 -> debug, 3+ -> trace
func Setup(verbosity int, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	switch {
	case verbosity < 0:
		zerolog.SetGlobalLevel(zerolog.Disabled)
	case verbosity == 0:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case verbosity == 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case verbosity == 2:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	}
	log.Logger = zerolog.New(console).With().Timestamp().Logger()

	// Add caller information for debug and trace levels
	if verbosity >= 2 {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Int("verbosity", verbosity).Msg("Logger initialized")
}

// Component returns a logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// LogDuration logs the duration of an operation at debug level.
func LogDuration(logger zerolog.Logger, start time.Time, operation string) {
	logger.Debug().
		Str("operation", operation).
		Dur("duration", time.Since(start)).
		Msg("Operation completed")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
