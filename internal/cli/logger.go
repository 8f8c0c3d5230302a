package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/internal/firmware"
	"github.com/me/tickos/internal/logging"
)

// firmwareLogger returns the logger a simulated board logs through. The
// manifest's log section applies unless the level or format was given on the
// command line. Records carry the tick read from the returned clock.
func firmwareLogger(cmd *cobra.Command, m *config.Manifest) (*slog.Logger, *firmware.TickClock) {
	levelName, format := m.Log.Level, m.Log.Format
	if flagDebug || cmd.Flags().Changed("log-level") {
		levelName = flagLogLevel
	}
	if cmd.Flags().Changed("log-format") {
		format = flagLogFormat
	}
	// The flag and the manifest were both validated already.
	level, _ := logging.ParseLevel(levelName)
	clock := &firmware.TickClock{}
	return logging.NewTickLogger(level, format, cmd.ErrOrStderr(), clock.Now), clock
}
