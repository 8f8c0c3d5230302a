package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/tickos/internal/chart"
	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/internal/firmware"
	"github.com/me/tickos/internal/store"
)

func newRunCmd() *cobra.Command {
	var (
		ticks     uint32
		noRecord  bool
		realtime  bool
		chartPath string
	)

	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Simulate a firmware manifest and record the trace",
		Long: `Builds the board described by the manifest, boots it and runs the
scheduler for --ticks ticks. The run, its switch trace and the final task
reports are stored in the trace database unless --no-record is given.
A halted board is reported, not treated as a command failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticks == 0 {
				return fmt.Errorf("--ticks must be positive")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			m, err := config.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if realtime {
				m.Board.Realtime = true
			}

			fwLogger, clock := firmwareLogger(cmd, m)
			fw, err := firmware.Build(m, fwLogger)
			if err != nil {
				return err
			}
			defer fw.Close()
			clock.Attach(fw.Board)

			run, events, err := fw.Simulate(cmd.Context(), ticks)
			if err != nil {
				return err
			}
			run.Manifest = string(data)

			if !noRecord {
				st, err := openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer st.Close()
				if err := store.Record(cmd.Context(), st, run, events); err != nil {
					return fmt.Errorf("record run: %w", err)
				}
				logger.Debug("run recorded", "id", run.ID, "switches", len(events))
			}

			if chartPath != "" {
				if err := writeChart(chartPath, run, events, chart.DefaultOptions()); err != nil {
					return err
				}
			}

			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&ticks, "ticks", 1000, "Number of ticks to simulate")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not store the run in the trace database")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Pace ticks against the wall clock")
	cmd.Flags().StringVar(&chartPath, "chart", "", "Also write a Gantt chart PNG to this path")

	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Check a firmware manifest without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.Load(args[0])
			if err != nil {
				return err
			}
			// Compiling the scripts catches syntax errors the schema check cannot.
			fw, err := firmware.Build(m, logger)
			if err != nil {
				return err
			}
			fw.Close()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: valid (fpu %s, pool %s, %d tasks)\n", m.Name, m.FPU(), m.Board.Pool, len(m.Tasks))
			return nil
		},
	}
}
