package kernel

import (
	"github.com/me/tickos/internal/stackpool"
	"github.com/me/tickos/pkg/model"
)

// StackUsage returns the high-water mark of a task stack in bytes.
func (k *Kernel) StackUsage(id model.TaskID) (uint32, error) {
	s := k.enter()
	defer k.exit(s)
	t := k.slot(id)
	if t == nil {
		return 0, model.NewKernelError(model.ErrUnknownTask, id, "no such task")
	}
	return stackpool.HighWater(k.core.Mem, t.Stack), nil
}

// CheckStacks scans every stack for canary damage and usage. The error, if
// any, names the first task whose lowest stack word was overwritten.
func (k *Kernel) CheckStacks() ([]model.StackReport, error) {
	s := k.enter()
	defer k.exit(s)
	var firstErr error
	reports := make([]model.StackReport, 0, len(k.tasks))
	for i := range k.tasks {
		t := &k.tasks[i]
		r := model.StackReport{
			Task:     t.ID,
			Name:     t.Name,
			Base:     t.Stack.Base,
			Size:     t.Stack.Size,
			Used:     stackpool.HighWater(k.core.Mem, t.Stack),
			CanaryOK: stackpool.Intact(k.core.Mem, t.Stack),
		}
		reports = append(reports, r)
		if !r.CanaryOK && firstErr == nil {
			firstErr = model.NewKernelError(model.ErrStackOverflow, t.ID,
				"task %q overwrote the canary at 0x%08x", t.Name, t.Stack.Base)
			k.logger.Error("stack overflow", "task", t.Name, "base", t.Stack.Base, "size", t.Stack.Size)
		}
	}
	return reports, firstErr
}

// Waiting lists the tasks currently spinning on a mutex or semaphore.
func (k *Kernel) Waiting() []model.WaitReport {
	s := k.enter()
	defer k.exit(s)
	var out []model.WaitReport
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.WaitDesc == "" {
			continue
		}
		out = append(out, model.WaitReport{
			Task:  t.ID,
			Name:  t.Name,
			Desc:  t.WaitDesc,
			Since: t.WaitSince,
			Ticks: k.now - t.WaitSince,
		})
	}
	return out
}

// DeadlockSuspects lists waiting tasks that have spun for at least the lock
// timeout.
func (k *Kernel) DeadlockSuspects() []model.WaitReport {
	var out []model.WaitReport
	for _, w := range k.Waiting() {
		if w.Ticks >= k.config.LockTimeout {
			out = append(out, w)
		}
	}
	return out
}

// Starved lists OPPORTUNISTIC tasks, idle excepted, that were ready but have
// not held the CPU for longer than the starvation window.
func (k *Kernel) Starved() []model.WaitReport {
	if k.config.StarvationWindow == 0 {
		return nil
	}
	s := k.enter()
	defer k.exit(s)
	var out []model.WaitReport
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.Policy != model.PolicyOpportunistic || t.ID == k.idle || t.Delay > 0 || i == k.current {
			continue
		}
		if idle := k.now - t.LastRanAt; idle > k.config.StarvationWindow {
			out = append(out, model.WaitReport{
				Task:  t.ID,
				Name:  t.Name,
				Desc:  "STARVED",
				Since: t.LastRanAt,
				Ticks: idle,
			})
		}
	}
	return out
}

// Report summarises every task for the trace store.
func (k *Kernel) Report() []model.TaskReport {
	s := k.enter()
	defer k.exit(s)
	out := make([]model.TaskReport, len(k.tasks))
	for i := range k.tasks {
		t := &k.tasks[i]
		out[i] = model.TaskReport{
			ID:        t.ID,
			Name:      t.Name,
			Policy:    t.Policy,
			Priority:  t.Priority,
			Period:    t.Period,
			Runs:      t.Runs,
			Missed:    t.Missed,
			TicksUsed: t.TicksUsed,
			StackSize: t.Stack.Size,
			StackUsed: stackpool.HighWater(k.core.Mem, t.Stack),
			CanaryOK:  stackpool.Intact(k.core.Mem, t.Stack),
			WaitDesc:  t.WaitDesc,
		}
	}
	return out
}
