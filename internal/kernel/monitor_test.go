package kernel

import (
	"errors"
	"testing"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/pkg/model"
)

func TestStackUsage(t *testing.T) {
	k := newTestKernel(t, cpu.FPUNone, DefaultConfig())
	id := mustRegister(t, k, TaskSpec{Name: "a", Policy: model.PolicyOpportunistic, StackSize: 256})
	used, err := k.StackUsage(id)
	if err != nil {
		t.Fatalf("StackUsage: %v", err)
	}
	if used != 17*4 {
		t.Errorf("used = %d, want %d", used, 17*4)
	}
	tcb, _ := k.Task(id)
	k.core.Mem.Store(tcb.Stack.Top()-200, 0)
	if used, _ := k.StackUsage(id); used != 200 {
		t.Errorf("used = %d, want 200", used)
	}
	if _, err := k.StackUsage(9); !errors.Is(err, model.ErrUnknownTaskKind) {
		t.Errorf("err = %v, want UNKNOWN_TASK", err)
	}
}

func TestCheckStacks_Overflow(t *testing.T) {
	k := newTestKernel(t, cpu.FPUNone, DefaultConfig())
	mustRegister(t, k, TaskSpec{Name: "a", Policy: model.PolicyOpportunistic})
	b := mustRegister(t, k, TaskSpec{Name: "b", Policy: model.PolicyOpportunistic})
	if _, err := k.CheckStacks(); err != nil {
		t.Fatalf("CheckStacks on fresh stacks: %v", err)
	}

	tcb, _ := k.Task(b)
	k.core.Mem.Store(tcb.Stack.Base, 0x0badf00d)
	reports, err := k.CheckStacks()
	if !errors.Is(err, model.ErrStackOverflowKind) {
		t.Fatalf("err = %v, want STACK_OVERFLOW", err)
	}
	var ke *model.KernelError
	if errors.As(err, &ke) && ke.Task != b {
		t.Errorf("overflow reported for task %d, want %d", ke.Task, b)
	}
	if reports[0].CanaryOK != true || reports[1].CanaryOK != false {
		t.Errorf("reports = %+v", reports)
	}
}

func TestWaitingAndDeadlockSuspects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockTimeout = 5
	k := newTestKernel(t, cpu.FPUNone, cfg)
	a := mustRegister(t, k, TaskSpec{Name: "a", Policy: model.PolicyOpportunistic})
	b := mustRegister(t, k, TaskSpec{Name: "b", Policy: model.PolicyOpportunistic})

	k.SetWait(a, "MUTEX_WAIT")
	k.Tick()
	k.Tick()
	k.SetWait(b, "SEM_WAIT")
	k.SetWait(a, "MUTEX_WAIT")
	for i := 0; i < 4; i++ {
		k.Tick()
	}

	waiting := k.Waiting()
	if len(waiting) != 2 {
		t.Fatalf("waiting = %+v, want 2 entries", waiting)
	}
	if waiting[0].Since != 0 || waiting[0].Ticks != 6 {
		t.Errorf("a waits since %d for %d ticks, want 0 and 6", waiting[0].Since, waiting[0].Ticks)
	}
	suspects := k.DeadlockSuspects()
	if len(suspects) != 1 || suspects[0].Task != a {
		t.Errorf("suspects = %+v, want only task a", suspects)
	}

	k.ClearWait(a)
	if got := k.Waiting(); len(got) != 1 || got[0].Task != b {
		t.Errorf("after ClearWait waiting = %+v", got)
	}
}

func TestStarved(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StarvationWindow = 20
	k := newTestKernel(t, cpu.FPUNone, cfg)
	mustRegister(t, k, TaskSpec{Name: "hog", Policy: model.PolicyEventDriven})
	opp := mustRegister(t, k, TaskSpec{Name: "opp", Policy: model.PolicyOpportunistic, Priority: 3})
	hog, _ := k.Lookup("hog")
	if err := k.Start(idleEntry, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 30; i++ {
		k.Wake(hog)
		step(t, k)
	}
	starved := k.Starved()
	if len(starved) != 1 || starved[0].Task != opp || starved[0].Desc != "STARVED" {
		t.Fatalf("starved = %+v, want task opp", starved)
	}
	if starved[0].Ticks <= 20 {
		t.Errorf("starved for %d ticks, want more than 20", starved[0].Ticks)
	}

	cfg.StarvationWindow = 0
	k.config = cfg
	if got := k.Starved(); got != nil {
		t.Errorf("Starved with window 0 = %+v, want nil", got)
	}
}

func TestReport(t *testing.T) {
	k := newTestKernel(t, cpu.FPUNone, DefaultConfig())
	a := mustRegister(t, k, TaskSpec{Name: "a", Policy: model.PolicyPeriodicCatchup, Period: 4})
	if err := k.Start(idleEntry, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 10; i++ {
		step(t, k)
	}
	reports := k.Report()
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	r := reports[a]
	if r.Name != "a" || r.Policy != model.PolicyPeriodicCatchup || r.Period != 4 || !r.CanaryOK {
		t.Errorf("report = %+v", r)
	}
	var total uint32
	for _, r := range reports {
		total += r.TicksUsed
	}
	if total != 10 {
		t.Errorf("ticks used = %d, want 10", total)
	}
}
