package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/tickos/pkg/model"
)

func newSubmitCmd() *cobra.Command {
	var (
		ticks  uint32
		dryRun bool
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "submit <manifest>",
		Short: "Simulate a manifest on a tickos server",
		Long: `Uploads the manifest to the server given by --server, which simulates it
and records the run in its own trace database. With --dry-run the server
only validates the manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			w := cmd.OutOrStdout()

			if dryRun {
				resp, err := client.PostManifest("/api/v1/manifests/validate", data)
				if err != nil {
					return fmt.Errorf("validate: %w", err)
				}
				var v struct {
					Name  string `json:"name"`
					FPU   string `json:"fpu"`
					Tasks int    `json:"tasks"`
				}
				if err := json.Unmarshal(resp.Data, &v); err != nil {
					return fmt.Errorf("parse response: %w", err)
				}
				fmt.Fprintf(w, "%s: valid (fpu %s, %d tasks)\n", v.Name, v.FPU, v.Tasks)
				return nil
			}

			resp, err := client.PostManifest(fmt.Sprintf("/api/v1/runs?ticks=%d", ticks), data)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			var run model.Run
			if err := json.Unmarshal(resp.Data, &run); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if quiet {
				fmt.Fprintln(w, run.ID)
				return nil
			}
			printRun(w, &run)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&ticks, "ticks", 1000, "Number of ticks to simulate")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only validate the manifest on the server")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the run ID")

	return cmd
}
