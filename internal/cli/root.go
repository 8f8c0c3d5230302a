package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/tickos/internal/logging"
)

var (
	flagServer    string
	flagDB        string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking TICKOS_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("TICKOS_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the tickos CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tickos",
		Short: "tickos: a preemptive Cortex-M scheduler on a simulated board",
		Long: "tickos builds firmware manifests into a simulated Cortex-M board, runs the\n" +
			"preemptive scheduler against them and records the switch trace.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			level, err := logging.ParseLevel(flagLogLevel)
			if err != nil {
				return err
			}
			if !logging.ValidFormat(flagLogFormat) {
				return fmt.Errorf("unknown log format %q", flagLogFormat)
			}
			logger = logging.NewLoggerWithWriter(level, flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "tickos server URL (or TICKOS_SERVER env)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Trace database path (default ~/.tickos/tickos.db)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newStepCmd(),
		newFrameCmd(),
		newRunsCmd(),
		newTasksCmd(),
		newSwitchesCmd(),
		newChartCmd(),
		newSubmitCmd(),
		newVersionCmd(),
	)

	return root
}
