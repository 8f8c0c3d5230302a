package kernel

import (
	"testing"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/internal/frame"
	"github.com/me/tickos/pkg/model"
)

func TestStartFirstTask_PicksBestOpportunistic(t *testing.T) {
	k := newTestKernel(t, cpu.FPUNone, DefaultConfig())
	mustRegister(t, k, TaskSpec{Name: "lo", Policy: model.PolicyOpportunistic, Priority: 2})
	hi := mustRegister(t, k, TaskSpec{Name: "hi", Entry: 0x08000801, Arg: 0x10000010, Policy: model.PolicyOpportunistic, Priority: 5})

	if err := k.Start(idleEntry, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if k.Current() != hi {
		t.Errorf("first task = %d, want %d", k.Current(), hi)
	}
	tcb, _ := k.Task(hi)
	if k.core.Regs.PC != 0x08000801 || k.core.Regs.R[0] != 0x10000010 {
		t.Errorf("PC/R0 = 0x%08x/0x%08x", k.core.Regs.PC, k.core.Regs.R[0])
	}
	if k.core.Regs.PSP != tcb.Stack.Top() {
		t.Errorf("PSP = 0x%08x, want 0x%08x", k.core.Regs.PSP, tcb.Stack.Top())
	}
	if k.core.InHandler() || !k.core.SysTickEnabled() {
		t.Error("core not in thread mode with the tick running")
	}
	idle, _ := k.Task(k.Idle())
	if idle.Name != "idle" || idle.Policy != model.PolicyOpportunistic || idle.Priority != 0 {
		t.Errorf("idle task = %+v", idle)
	}
}

func TestStartFirstTask_Empty(t *testing.T) {
	k := newTestKernel(t, cpu.FPUNone, DefaultConfig())
	if err := k.StartFirstTask(); err == nil {
		t.Error("expected error with an empty table")
	}
}

// Every task sets distinct register values each quantum and must find them
// untouched when it is resumed, with every canary intact afterwards.
func TestSwitch_PreservesContext(t *testing.T) {
	for _, fpu := range []cpu.FPU{cpu.FPUNone, cpu.FPUSingle, cpu.FPUDouble} {
		t.Run(fpu.String(), func(t *testing.T) {
			k := newTestKernel(t, fpu, DefaultConfig())
			var ids []model.TaskID
			for _, name := range []string{"a", "b", "c"} {
				ids = append(ids, mustRegister(t, k, TaskSpec{Name: name, Arg: 0x10000100, Policy: model.PolicyOpportunistic, Priority: 1}))
			}
			if err := k.Start(idleEntry, 0); err != nil {
				t.Fatalf("Start: %v", err)
			}

			nD := 0
			switch fpu {
			case cpu.FPUSingle:
				nD = 16
			case cpu.FPUDouble:
				nD = 32
			}
			type ctx struct {
				r [13]uint32
				d [32]uint64
			}
			saved := map[model.TaskID]ctx{}
			const rounds = 150

			for i := 0; i < rounds; i++ {
				cur := k.Current()
				regs := &k.core.Regs
				if want, ok := saved[cur]; ok {
					if regs.R != want.r {
						t.Fatalf("round %d task %d: R = %x, want %x", i, cur, regs.R, want.r)
					}
					for d := 0; d < nD; d++ {
						if regs.D[d] != want.d[d] {
							t.Fatalf("round %d task %d: D%d = %x, want %x", i, cur, d, regs.D[d], want.d[d])
						}
					}
				} else if regs.R[4] != frame.InitR4 || regs.R[0] != 0x10000100 {
					t.Fatalf("round %d task %d: fresh context R0=0x%08x R4=0x%08x", i, cur, regs.R[0], regs.R[4])
				}

				var c ctx
				for r := range regs.R {
					regs.R[r] = uint32(i+1)<<16 | uint32(cur)<<8 | uint32(r)
					c.r[r] = regs.R[r]
				}
				if nD > 0 {
					k.core.TouchFP()
					for d := 0; d < nD; d++ {
						regs.D[d] = uint64(i+1)<<32 | uint64(cur)<<8 | uint64(d)
						c.d[d] = regs.D[d]
					}
				}
				saved[cur] = c

				next := ids[(int(cur)+1)%len(ids)]
				k.SetPriority(cur, 1)
				k.SetPriority(next, 10)
				step(t, k)
				if k.Current() != next {
					t.Fatalf("round %d: running %d, want %d", i, k.Current(), next)
				}
			}

			if k.Switches() != rounds {
				t.Errorf("switches = %d, want %d", k.Switches(), rounds)
			}
			reports, err := k.CheckStacks()
			if err != nil {
				t.Fatalf("CheckStacks: %v", err)
			}
			for _, r := range reports {
				if !r.CanaryOK {
					t.Errorf("task %s canary damaged", r.Name)
				}
				if r.Task != k.Idle() && r.Used < uint32(fpu.FrameWords()*4) {
					t.Errorf("task %s used %d bytes, want at least a full frame", r.Name, r.Used)
				}
			}
		})
	}
}

func TestDelay_SleepsThenResumes(t *testing.T) {
	k := newTestKernel(t, cpu.FPUNone, DefaultConfig())
	a := mustRegister(t, k, TaskSpec{Name: "a", Policy: model.PolicyOpportunistic, Priority: 2})
	b := mustRegister(t, k, TaskSpec{Name: "b", Policy: model.PolicyOpportunistic, Priority: 1})
	if err := k.Start(idleEntry, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if k.Current() != a {
		t.Fatalf("first task = %d, want %d", k.Current(), a)
	}

	k.Delay(3)
	var trace []model.TaskID
	for i := 0; i < 4; i++ {
		step(t, k)
		trace = append(trace, k.Current())
	}
	want := []model.TaskID{b, b, a, a}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
	if k.DelayRemaining(a) != 0 {
		t.Errorf("DelayRemaining = %d, want 0", k.DelayRemaining(a))
	}
}

func TestOnSwitch_Events(t *testing.T) {
	k := newTestKernel(t, cpu.FPUNone, DefaultConfig())
	a := mustRegister(t, k, TaskSpec{Name: "a", Policy: model.PolicyOpportunistic, Priority: 1})
	ev := mustRegister(t, k, TaskSpec{Name: "ev", Policy: model.PolicyEventDriven})
	var events []model.SwitchEvent
	k.OnSwitch(func(e model.SwitchEvent) { events = append(events, e) })
	if err := k.Start(idleEntry, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	step(t, k)
	k.Wake(ev)
	step(t, k)
	k.EndRun(ev)
	step(t, k)

	want := []model.SwitchEvent{{Tick: 2, From: a, To: ev}, {Tick: 3, From: ev, To: a}}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestCheckResume_ForeignStack(t *testing.T) {
	k := newTestKernel(t, cpu.FPUNone, DefaultConfig())
	mustRegister(t, k, TaskSpec{Name: "a", Policy: model.PolicyOpportunistic})
	if err := k.Start(idleEntry, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := k.CheckResume(); err != nil {
		t.Fatalf("CheckResume after start: %v", err)
	}
	k.core.Regs.PSP = 0x20003ff0
	if err := k.CheckResume(); err == nil {
		t.Error("CheckResume accepted a PSP outside the task stack")
	}
}
