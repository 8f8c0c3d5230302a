package kernel

import (
	"fmt"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/internal/frame"
	"github.com/me/tickos/pkg/model"
)

// SwitchContext is the PendSV handler. The core has already stacked the
// hardware frame of the interrupted task and left its EXC_RETURN in LR.
func (k *Kernel) SwitchContext() {
	prev := k.current
	k.tasks[prev].SavedSP = frame.Save(k.core)

	next := SelectNext(k.tasks, prev, k.now)

	frame.Restore(k.core, k.tasks[next].SavedSP)
	k.current = next
	if next == prev {
		return
	}
	k.switches++
	ev := model.SwitchEvent{Tick: k.now, From: k.tasks[prev].ID, To: k.tasks[next].ID}
	k.logger.Debug("context switch",
		"tick", ev.Tick,
		"from", k.tasks[prev].Name,
		"to", k.tasks[next].Name,
	)
	if k.onSwitch != nil {
		k.onSwitch(ev)
	}
}

// Start registers the idle task, the fallback of last resort, and performs
// the first context load. idleEntry is the code address of the idle body.
func (k *Kernel) Start(idleEntry, idleArg uint32) error {
	if k.started {
		return model.NewKernelError(model.ErrAlreadyStarted, model.NoTask, "kernel already started")
	}
	id, err := k.register(TaskSpec{
		Name:      "idle",
		Entry:     idleEntry,
		Arg:       idleArg,
		Policy:    model.PolicyOpportunistic,
		Priority:  0,
		StackSize: k.core.FPU().MinStackSize(),
	})
	if err != nil {
		return fmt.Errorf("registering idle task: %w", err)
	}
	k.idle = id
	return k.StartFirstTask()
}

// StartFirstTask loads the context the policy engine picks at tick zero
// straight into the core and enables the tick.
func (k *Kernel) StartFirstTask() (err error) {
	if len(k.tasks) == 0 {
		return model.NewKernelError(model.ErrNotStarted, model.NoTask, "no tasks registered")
	}
	defer cpu.Recover(&err)

	fallback := len(k.tasks) - 1
	if k.idle != model.NoTask {
		fallback = int(k.idle)
	}
	first := SelectNext(k.tasks, fallback, k.now)
	k.current = first
	k.started = true
	k.core.ExceptionReturn(frame.Restore(k.core, k.tasks[first].SavedSP))
	k.core.EnableSysTick(true)

	k.logger.Info("scheduler started", "first", k.tasks[first].Name, "tasks", len(k.tasks))
	return nil
}

// Started reports whether StartFirstTask has run.
func (k *Kernel) Started() bool { return k.started }

// Switches returns how many times the running task changed.
func (k *Kernel) Switches() int { return k.switches }

// Current returns the id of the running task.
func (k *Kernel) Current() model.TaskID {
	if len(k.tasks) == 0 {
		return model.NoTask
	}
	return k.tasks[k.current].ID
}

// CheckResume verifies that the thread stack pointer the core resumed with
// lies inside the running task's stack, the invariant on saved_sp.
func (k *Kernel) CheckResume() error {
	t := &k.tasks[k.current]
	if sp := k.core.Regs.PSP; !t.ownsSP(sp) {
		return &cpu.Fault{Kind: cpu.FaultBus, Addr: sp,
			Msg: fmt.Sprintf("PSP outside stack %v of task %q", t.Stack, t.Name)}
	}
	return nil
}
