package kernel

import (
	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/pkg/model"
)

// Delay marks the running task as sleeping for ticks ticks and pends a
// switch. The caller keeps yielding until DelayRemaining reports zero; a
// zero delay is a plain yield.
func (k *Kernel) Delay(ticks uint32) {
	s := k.enter()
	k.tasks[k.current].Delay = ticks
	k.exit(s)
	k.core.Pend(cpu.PendSV)
}

// DelayRemaining returns the ticks left on a task's delay.
func (k *Kernel) DelayRemaining(id model.TaskID) uint32 {
	s := k.enter()
	defer k.exit(s)
	if t := k.slot(id); t != nil {
		return t.Delay
	}
	return 0
}

// BeginRun is the task wrapper's pre-run hook.
func (k *Kernel) BeginRun(id model.TaskID) {
	s := k.enter()
	defer k.exit(s)
	if t := k.slot(id); t != nil {
		t.LastRun = k.now
		t.InRun = true
	}
}

// EndRun is the task wrapper's post-run hook: it drains one unit of catch-up
// backlog, clears an event task's wake flag and counts the run.
func (k *Kernel) EndRun(id model.TaskID) {
	s := k.enter()
	defer k.exit(s)
	t := k.slot(id)
	if t == nil {
		return
	}
	t.InRun = false
	switch t.Policy {
	case model.PolicyPeriodicCatchup:
		if t.Missed > 0 {
			t.Missed--
		}
	case model.PolicyEventDriven:
		t.Active = false
	}
	t.Runs++
}

// SetWait records that a task is spinning on a synchronization primitive.
// The first call of a wait stamps the start tick.
func (k *Kernel) SetWait(id model.TaskID, desc string) {
	s := k.enter()
	defer k.exit(s)
	if t := k.slot(id); t != nil && t.WaitDesc != desc {
		t.WaitDesc = desc
		t.WaitSince = k.now
	}
}

// ClearWait records that a task's wait is over.
func (k *Kernel) ClearWait(id model.TaskID) {
	s := k.enter()
	defer k.exit(s)
	if t := k.slot(id); t != nil {
		t.WaitDesc = ""
		t.WaitSince = 0
	}
}
