// Package pluginlog wires the module's zerolog usage to whatever sink the
// host process wants: by default stderr, or any io.Writer the host
// supplies so its own log pipeline can capture plugin output.
package pluginlog

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the root logger for a Plugin instance. levelName follows
// zerolog's names ("debug", "info", "warn", "error"); an unrecognized or
// empty name defaults to "info", matching spec.md §7's default severity
// for lifecycle and config messages. w defaults to os.Stderr when nil.
func New(levelName string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelName)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
