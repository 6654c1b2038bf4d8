package pluginlog

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfoOnUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("not-a-level", &buf)

	log.Debug().Msg("should be suppressed")
	require.Empty(t, buf.String())

	log.Info().Msg("should appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestNew_HonorsConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", &buf)

	log.Debug().Msg("debug line")
	require.Contains(t, buf.String(), "debug line")
}

func TestNew_DefaultsWriterToStderrWithoutPanicking(t *testing.T) {
	require.NotPanics(t, func() {
		log := New("info", nil)
		_ = log.GetLevel() == zerolog.InfoLevel
	})
}
