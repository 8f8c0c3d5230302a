package model

import "time"

// RunState represents the lifecycle state of a simulation run.
type RunState string

const (
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStateHalted    RunState = "HALTED"
	RunStateCancelled RunState = "CANCELLED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateHalted, RunStateCancelled:
		return true
	}
	return false
}

// Run is one execution of a firmware manifest on the simulated board.
type Run struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	FPU         string       `json:"fpu"`
	State       RunState     `json:"state"`
	Ticks       uint32       `json:"ticks"`
	Switches    int          `json:"switches"`
	HaltReason  string       `json:"halt_reason,omitempty"`
	Tasks       []TaskReport `json:"tasks,omitempty"`
	Manifest    string       `json:"manifest,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at"`
}

// SwitchEvent records one context switch performed by the switch handler.
type SwitchEvent struct {
	Tick uint32 `json:"tick"`
	From TaskID `json:"from"`
	To   TaskID `json:"to"`
}

// TaskReport is the final state of one task table slot.
type TaskReport struct {
	ID        TaskID `json:"id"`
	Name      string `json:"name"`
	Policy    Policy `json:"policy"`
	Priority  uint8  `json:"priority"`
	Period    uint32 `json:"period"`
	Runs      uint32 `json:"runs"`
	Missed    uint32 `json:"missed"`
	TicksUsed uint32 `json:"ticks_used"`
	StackSize uint32 `json:"stack_size"`
	StackUsed uint32 `json:"stack_used"`
	CanaryOK  bool   `json:"canary_ok"`
	WaitDesc  string `json:"wait_desc,omitempty"`
}

// StackReport is the result of a canary and high-water scan of one task stack.
type StackReport struct {
	Task     TaskID `json:"task"`
	Name     string `json:"name"`
	Base     uint32 `json:"base"`
	Size     uint32 `json:"size"`
	Used     uint32 `json:"used"`
	CanaryOK bool   `json:"canary_ok"`
}

// WaitReport describes a task spinning on a synchronization primitive.
type WaitReport struct {
	Task  TaskID `json:"task"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
	Since uint32 `json:"since"`
	Ticks uint32 `json:"ticks"`
}

// CPUShare returns each task's fraction of the total ticks consumed.
func CPUShare(reports []TaskReport) map[TaskID]float64 {
	var total uint32
	for _, r := range reports {
		total += r.TicksUsed
	}
	share := make(map[TaskID]float64, len(reports))
	if total == 0 {
		return share
	}
	for _, r := range reports {
		share[r.ID] = float64(r.TicksUsed) / float64(total)
	}
	return share
}
