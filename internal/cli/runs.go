package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/tickos/pkg/model"
)

func newRunsCmd() *cobra.Command {
	var (
		state string
		name  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			opts := model.DefaultListOptions()
			opts.State = model.RunState(state)
			opts.Name = name
			opts.Limit = limit
			opts.Clamp()
			runs, total, err := st.ListRuns(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs found.")
				return nil
			}

			fmt.Fprintf(w, "%-40s  %-16s  %-10s  %8s  %8s  %s\n", "ID", "NAME", "STATE", "TICKS", "SWITCHES", "CREATED")
			fmt.Fprintf(w, "%-40s  %-16s  %-10s  %8s  %8s  %s\n", "--", "----", "-----", "-----", "--------", "-------")
			for _, r := range runs {
				fmt.Fprintf(w, "%-40s  %-16s  %-10s  %8d  %8d  %s\n",
					r.ID, r.Name, r.State, r.Ticks, r.Switches, humanize.Time(r.CreatedAt))
			}
			if len(runs) < total {
				fmt.Fprintf(w, "\n(%d of %d shown)\n", len(runs), total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Only runs in this state (COMPLETED, HALTED, CANCELLED)")
	cmd.Flags().StringVar(&name, "name", "", "Only runs of this manifest name")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <run-id>",
		Short: "Show a run and its final task reports",
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
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func newSwitchesCmd() *cobra.Command {
	var from, to uint32

	cmd := &cobra.Command{
		Use:   "switches <run-id>",
		Short: "Print the context-switch trace of a run",
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
			events, err := st.ListSwitches(cmd.Context(), run.ID, from, to)
			if err != nil {
				return fmt.Errorf("list switches: %w", err)
			}
			printSwitches(cmd.OutOrStdout(), run, events)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&from, "from", 0, "First tick to show")
	cmd.Flags().Uint32Var(&to, "to", 0, "Last tick to show (0 for the end of the run)")

	return cmd
}
