package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/tickos/internal/chart"
	"github.com/me/tickos/pkg/model"
)

func newChartCmd() *cobra.Command {
	var (
		out  string
		opts = chart.DefaultOptions()
	)

	cmd := &cobra.Command{
		Use:   "chart <run-id>",
		Short: "Draw a Gantt chart of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := loadRun(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			events, err := st.ListSwitches(cmd.Context(), run.ID, 0, 0)
			if err != nil {
				return fmt.Errorf("list switches: %w", err)
			}
			if out == "" {
				out = run.ID + ".png"
			}
			if err := writeChart(out, run, events, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Output PNG path (default <run-id>.png)")
	cmd.Flags().Uint32Var(&opts.From, "from", 0, "First tick to draw")
	cmd.Flags().Uint32Var(&opts.To, "to", 0, "Last tick to draw (0 for the end of the run)")
	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "Image width in pixels")

	return cmd
}

func writeChart(path string, run *model.Run, events []model.SwitchEvent, opts chart.Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := chart.WritePNG(f, run, events, opts); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
