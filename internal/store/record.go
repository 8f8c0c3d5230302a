package store

import (
	"context"
	"fmt"

	"github.com/me/tickos/pkg/model"
)

// Record persists a finished run together with its switch trace and task
// reports.
func Record(ctx context.Context, st Store, run *model.Run, events []model.SwitchEvent) error {
	if err := st.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	if err := st.AddSwitches(ctx, run.ID, events); err != nil {
		return fmt.Errorf("store switches: %w", err)
	}
	if err := st.SaveTaskReports(ctx, run.ID, run.Tasks); err != nil {
		return fmt.Errorf("store task reports: %w", err)
	}
	return nil
}
