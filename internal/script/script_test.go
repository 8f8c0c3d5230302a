package script

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/me/tickos/internal/board"
	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/pkg/model"
)

func newTestBoard(t *testing.T, fpu cpu.FPU) (*board.Board, *Env) {
	t.Helper()
	cfg := board.DefaultConfig()
	cfg.FPU = fpu
	cfg.MonitorInterval = 0
	b, err := board.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	t.Cleanup(b.Close)
	return b, NewEnv(b.Kernel())
}

func addScript(t *testing.T, b *board.Board, env *Env, cfg board.TaskConfig, src string) model.TaskID {
	t.Helper()
	fn, err := Compile(cfg.Name, src, env)
	if err != nil {
		t.Fatalf("Compile(%s): %v", cfg.Name, err)
	}
	if cfg.StackSize == 0 {
		cfg.StackSize = 512
	}
	id, err := b.AddTask(cfg, fn)
	if err != nil {
		t.Fatalf("AddTask(%s): %v", cfg.Name, err)
	}
	return id
}

func TestCompile_Errors(t *testing.T) {
	env := NewEnv(nil)
	tests := []struct {
		name string
		src  string
		env  *Env
	}{
		{"empty", "  \n", env},
		{"syntax", "delay(1", env},
		{"nil env", "delay(1)", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile("bad", tt.src, tt.env); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestScript_StatePersistsAcrossRuns(t *testing.T) {
	b, env := newTestBoard(t, cpu.FPUNone)
	id := addScript(t, b, env, board.TaskConfig{Name: "counter", Policy: model.PolicyPeriodicSkip, Period: 10},
		`state.n = (state.n || 0) + 1; let x = state.n * 2; setReg(4, x);`)
	if err := b.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := b.Run(context.Background(), 55); err != nil {
		t.Fatalf("Run: %v", err)
	}
	tcb, _ := b.Kernel().Task(id)
	if tcb.Runs != 5 {
		t.Errorf("runs = %d, want 5", tcb.Runs)
	}
}

func TestScript_SemaphoreAndWake(t *testing.T) {
	b, env := newTestBoard(t, cpu.FPUNone)
	env.AddSemaphore("ready", false)
	addScript(t, b, env, board.TaskConfig{Name: "producer", Policy: model.PolicyPeriodicSkip, Period: 10},
		`give("ready"); wake("consumer");`)
	consumer := addScript(t, b, env, board.TaskConfig{Name: "consumer", Policy: model.PolicyEventDriven},
		`if (!tryWait("ready")) { halt("semaphore not given"); }`)
	if err := b.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := b.Run(context.Background(), 100); err != nil {
		t.Fatalf("Run: %v", err)
	}
	tcb, _ := b.Kernel().Task(consumer)
	if tcb.Runs != 9 {
		t.Errorf("consumer runs = %d, want 9", tcb.Runs)
	}
}

func TestScript_MutexRecursionAndProgress(t *testing.T) {
	b, env := newTestBoard(t, cpu.FPUNone)
	env.AddMutex("bus")
	body := `
		lock("bus");
		if (!tryLock("bus")) { halt("owner could not relock"); }
		work(2);
		unlock("bus");
		if (!unlock("bus")) { halt("second unlock refused"); }
		delay(1);
	`
	a := addScript(t, b, env, board.TaskConfig{Name: "a", Policy: model.PolicyOpportunistic, Priority: 2}, body)
	c := addScript(t, b, env, board.TaskConfig{Name: "b", Policy: model.PolicyOpportunistic, Priority: 2}, body)
	if err := b.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := b.Run(context.Background(), 200); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, id := range []model.TaskID{a, c} {
		tcb, _ := b.Kernel().Task(id)
		if tcb.Runs < 5 {
			t.Errorf("task %s runs = %d, want at least 5", tcb.Name, tcb.Runs)
		}
	}
	if m := env.Mutexes["bus"]; m.Count() > 2 {
		t.Errorf("mutex depth = %d after run", m.Count())
	}
}

func TestScript_FPURegisters(t *testing.T) {
	b, env := newTestBoard(t, cpu.FPUDouble)
	body := func(v string) string {
		return `useFPU(9, ` + v + `); delay(1); if (fpReg(9) !== ` + v + `) { halt("d9 lost: " + fpReg(9)); }`
	}
	a := addScript(t, b, env, board.TaskConfig{Name: "a", Policy: model.PolicyOpportunistic, Priority: 1}, body("1.5"))
	addScript(t, b, env, board.TaskConfig{Name: "b", Policy: model.PolicyOpportunistic, Priority: 1}, body("-2.25"))
	if err := b.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := b.Run(context.Background(), 50); err != nil {
		t.Fatalf("Run: %v", err)
	}
	tcb, _ := b.Kernel().Task(a)
	if tcb.Runs == 0 {
		t.Error("task a never completed a run")
	}
}

func TestScript_ErrorsHaltBoard(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"throw", `throw new Error("boom");`, "boom"},
		{"unknown mutex", `lock("nope");`, `unknown mutex "nope"`},
		{"unknown semaphore", `give("nope");`, `unknown semaphore "nope"`},
		{"unknown task", `wake("ghost");`, `unknown task "ghost"`},
		{"register range", `setReg(13, 1);`, "out of range"},
		{"halt", `halt("stop here");`, "stop here"},
		{"callback throw", `call(4, function() { throw new Error("deep"); });`, "deep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, env := newTestBoard(t, cpu.FPUNone)
			addScript(t, b, env, board.TaskConfig{Name: "bad", Policy: model.PolicyOpportunistic, Priority: 1}, tt.src)
			if err := b.Boot(); err != nil {
				t.Fatalf("Boot: %v", err)
			}
			err := b.Run(context.Background(), 10)
			if !errors.Is(err, board.ErrHalted) {
				t.Fatalf("err = %v, want ErrHalted", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestScript_ExitFaults(t *testing.T) {
	b, env := newTestBoard(t, cpu.FPUNone)
	addScript(t, b, env, board.TaskConfig{Name: "quitter", Policy: model.PolicyOpportunistic, Priority: 1}, `exit();`)
	if err := b.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	err := b.Run(context.Background(), 5)
	var f *cpu.Fault
	if !errors.As(err, &f) || f.Kind != cpu.FaultTaskReturn {
		t.Fatalf("err = %v, want task return fault", err)
	}
}

func TestScript_IDAndNow(t *testing.T) {
	b, env := newTestBoard(t, cpu.FPUNone)
	addScript(t, b, env, board.TaskConfig{Name: "peer", Policy: model.PolicyEventDriven}, `state.x = 1;`)
	self := addScript(t, b, env, board.TaskConfig{Name: "self", Policy: model.PolicyPeriodicSkip, Period: 5}, `
		if (id() !== 1) { halt("id() = " + id()); }
		if (id("peer") !== 0) { halt("id(peer) = " + id("peer")); }
		if (now() % 5 !== 0) { halt("ran off period at " + now()); }
		call(8);
	`)
	if err := b.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if err := b.Run(context.Background(), 30); err != nil {
		t.Fatalf("Run: %v", err)
	}
	tcb, _ := b.Kernel().Task(self)
	if tcb.Runs == 0 {
		t.Error("self never ran")
	}
}
