package store

import (
	"context"

	"github.com/me/tickos/pkg/model"
)

// Store defines the persistence layer for simulation runs and their traces.
type Store interface {
	// Run CRUD
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	UpdateRun(ctx context.Context, run *model.Run) error
	DeleteRun(ctx context.Context, id string) error

	// Trace operations
	AddSwitches(ctx context.Context, runID string, events []model.SwitchEvent) error
	ListSwitches(ctx context.Context, runID string, from, to uint32) ([]model.SwitchEvent, error)
	SaveTaskReports(ctx context.Context, runID string, reports []model.TaskReport) error
	ListTaskReports(ctx context.Context, runID string) ([]model.TaskReport, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
