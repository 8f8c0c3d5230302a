package firmware

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/me/tickos/internal/board"
	"github.com/me/tickos/pkg/model"
)

// Recorder collects the switch events of a board.
type Recorder struct {
	events []model.SwitchEvent
}

// Attach installs the recorder as the board's switch observer.
func (r *Recorder) Attach(b *board.Board) {
	b.OnSwitch(func(e model.SwitchEvent) { r.events = append(r.events, e) })
}

// Events returns the recorded switches in order.
func (r *Recorder) Events() []model.SwitchEvent { return r.events }

// NewRun returns a RUNNING run record for the firmware.
func (fw *Firmware) NewRun() *model.Run {
	return &model.Run{
		ID:        "run_" + uuid.New().String(),
		Name:      fw.Manifest.Name,
		FPU:       fw.Manifest.FPU().String(),
		State:     model.RunStateRunning,
		CreatedAt: time.Now().UTC(),
	}
}

// Simulate boots the firmware, runs it for ticks ticks and returns the
// finished run with its switch trace. A halt is recorded in the run, not
// returned as an error; errors are reserved for boot failures.
func (fw *Firmware) Simulate(ctx context.Context, ticks uint32) (*model.Run, []model.SwitchEvent, error) {
	var rec Recorder
	rec.Attach(fw.Board)
	run := fw.NewRun()
	if err := fw.Boot(); err != nil {
		return nil, nil, err
	}
	err := fw.Board.Run(ctx, ticks)
	fw.Finish(run, err)
	return run, rec.Events(), nil
}

// Finish fills in the final state of run from the board and the error the
// run loop stopped with.
func (fw *Firmware) Finish(run *model.Run, err error) {
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Ticks = fw.Board.Ticks()
	run.Switches = fw.Board.Kernel().Switches()
	run.Tasks = fw.Board.Kernel().Report()
	switch {
	case err == nil:
		run.State = model.RunStateCompleted
	case errors.Is(err, board.ErrHalted):
		run.State = model.RunStateHalted
		run.HaltReason = err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		run.State = model.RunStateCancelled
	default:
		run.State = model.RunStateHalted
		run.HaltReason = err.Error()
	}
}
