package kernel

import (
	"github.com/me/tickos/internal/stackpool"
	"github.com/me/tickos/pkg/model"
)

// MaxMissed caps the catch-up backlog of a PERIODIC_CATCHUP task.
const MaxMissed = 3

// TCB is one slot of the task table.
type TCB struct {
	ID              model.TaskID
	Name            string
	Policy          model.Policy
	Priority        uint8
	Period          uint32
	PeriodCountdown uint32
	Missed          uint32
	Delay           uint32
	Active          bool
	Due             bool
	Entry           uint32
	Arg             uint32
	Stack           stackpool.Region
	SavedSP         uint32

	LastRun   uint32 // tick at which the latest run began
	InRun     bool   // between BeginRun and EndRun
	Runs      uint32 // completed runs
	TicksUsed uint32
	LastRanAt uint32
	WaitDesc  string
	WaitSince uint32
}

// ownsSP reports whether a thread stack pointer belongs to this task. An
// empty stack has SP at the top of the region.
func (t *TCB) ownsSP(sp uint32) bool {
	return sp > t.Stack.Base && sp <= t.Stack.Top()
}
