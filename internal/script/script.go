// Package script compiles manifest task bodies written in JavaScript (goja)
// into board task functions. Each task gets its own runtime, created on the
// task's first run and reused for every later run, so a body can keep state
// between runs on the global `state` object.
package script

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dop251/goja"

	"github.com/me/tickos/internal/board"
	"github.com/me/tickos/internal/ksync"
	"github.com/me/tickos/pkg/model"
)

// TaskLookup resolves task names to ids. *kernel.Kernel implements it.
type TaskLookup interface {
	Lookup(name string) (model.TaskID, bool)
}

// Env holds the named objects scripts can reach.
type Env struct {
	Mutexes    map[string]*ksync.Mutex
	Semaphores map[string]*ksync.Semaphore
	Tasks      TaskLookup
}

// NewEnv creates an empty environment resolving task names through tasks.
func NewEnv(tasks TaskLookup) *Env {
	return &Env{
		Mutexes:    make(map[string]*ksync.Mutex),
		Semaphores: make(map[string]*ksync.Semaphore),
		Tasks:      tasks,
	}
}

// AddMutex registers a named mutex.
func (e *Env) AddMutex(name string) *ksync.Mutex {
	m := ksync.NewMutex(name)
	e.Mutexes[name] = m
	return m
}

// AddSemaphore registers a named semaphore.
func (e *Env) AddSemaphore(name string, given bool) *ksync.Semaphore {
	s := ksync.NewSemaphore(name, given)
	e.Semaphores[name] = s
	return s
}

// Compile parses src and returns a task body running it once per run.
// A script that throws halts the board.
func Compile(name, src string, env *Env) (board.TaskFunc, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("script %s: empty body", name)
	}
	if env == nil {
		return nil, errors.New("script: nil environment")
	}
	// Wrap in a function so let/const declarations are scoped to one run.
	wrapped := fmt.Sprintf("(function() {\n%s\n})()", src)
	prg, err := goja.Compile(name, wrapped, false)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}

	var vm *goja.Runtime
	return func(tc *board.TaskContext) {
		if vm == nil {
			vm, err = setupVM(tc, env)
			if err != nil {
				tc.Halt(err)
			}
		}
		if _, err := vm.RunProgram(prg); err != nil {
			tc.Halt(fmt.Errorf("script: %w", err))
		}
	}, nil
}

// setupVM creates a runtime with the kernel bindings for tc.
func setupVM(tc *board.TaskContext, env *Env) (*goja.Runtime, error) {
	vm := goja.New()
	b := &bindings{vm: vm, tc: tc, env: env}

	fns := map[string]any{
		"delay":       func(ticks uint32) { tc.Delay(ticks) },
		"work":        func(ticks uint32) { tc.Work(ticks) },
		"now":         func() uint32 { return tc.Now() },
		"id":          b.id,
		"lock":        func(name string) { tc.Lock(b.mutex(name)) },
		"tryLock":     func(name string) bool { return tc.TryLock(b.mutex(name)) },
		"lockTimeout": func(name string, ticks uint32) bool { return tc.LockTimeout(b.mutex(name), ticks) },
		"unlock":      func(name string) bool { return tc.Unlock(b.mutex(name)) },
		"wait":        func(name string) { tc.Wait(b.semaphore(name)) },
		"tryWait":     func(name string) bool { return tc.TryWait(b.semaphore(name)) },
		"give":        func(name string) { tc.Give(b.semaphore(name)) },
		"wake":        func(name string) { tc.Wake(b.task(name)) },
		"setPriority": func(name string, p uint8) { tc.SetPriority(b.task(name), p) },
		"reg":         func(n int) uint32 { return tc.Reg(b.gpr(n)) },
		"setReg":      func(n int, v uint32) { tc.SetReg(b.gpr(n), v) },
		"useFPU":      func(n int, v float64) { tc.UseFPU(b.fpr(n), math.Float64bits(v)) },
		"fpReg":       func(n int) float64 { return math.Float64frombits(tc.FPReg(b.fpr(n))) },
		"call":        b.call,
		"log":         b.log,
		"halt":        func(msg string) { tc.Halt(errors.New(msg)) },
		"exit":        func() { tc.Return() },
	}
	for name, fn := range fns {
		if err := vm.Set(name, fn); err != nil {
			return nil, fmt.Errorf("set %s: %w", name, err)
		}
	}
	if err := vm.Set("state", vm.NewObject()); err != nil {
		return nil, fmt.Errorf("set state: %w", err)
	}
	return vm, nil
}

type bindings struct {
	vm  *goja.Runtime
	tc  *board.TaskContext
	env *Env
}

// throw raises a JavaScript TypeError in the calling script.
func (b *bindings) throw(format string, args ...any) {
	panic(b.vm.NewTypeError(fmt.Sprintf(format, args...)))
}

func (b *bindings) mutex(name string) *ksync.Mutex {
	m, ok := b.env.Mutexes[name]
	if !ok {
		b.throw("unknown mutex %q", name)
	}
	return m
}

func (b *bindings) semaphore(name string) *ksync.Semaphore {
	s, ok := b.env.Semaphores[name]
	if !ok {
		b.throw("unknown semaphore %q", name)
	}
	return s
}

func (b *bindings) task(name string) model.TaskID {
	if b.env.Tasks == nil {
		b.throw("no task table")
	}
	id, ok := b.env.Tasks.Lookup(name)
	if !ok {
		b.throw("unknown task %q", name)
	}
	return id
}

func (b *bindings) gpr(n int) int {
	if n < 0 || n > 12 {
		b.throw("register r%d out of range", n)
	}
	return n
}

func (b *bindings) fpr(n int) int {
	if n < 0 || n > 31 {
		b.throw("register d%d out of range", n)
	}
	return n
}

// id returns the calling task's id, or the id of the named task.
func (b *bindings) id(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 || goja.IsUndefined(call.Argument(0)) {
		return b.vm.ToValue(int(b.tc.ID()))
	}
	return b.vm.ToValue(int(b.task(call.Argument(0).String())))
}

// call(words, fn) runs fn with words extra words pushed on the task stack.
func (b *bindings) call(call goja.FunctionCall) goja.Value {
	words := call.Argument(0).ToInteger()
	if words < 0 || words > math.MaxUint16 {
		b.throw("call: bad frame size %d", words)
	}
	var fn goja.Callable
	if len(call.Arguments) > 1 {
		f, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			b.throw("call: second argument is not a function")
		}
		fn = f
	}
	var result goja.Value = goja.Undefined()
	var cbErr error
	b.tc.Call(uint32(words), func() {
		if fn == nil {
			return
		}
		result, cbErr = fn(goja.Undefined())
	})
	if cbErr != nil {
		var ex *goja.Exception
		if errors.As(cbErr, &ex) {
			panic(ex.Value())
		}
		panic(b.vm.NewGoError(cbErr))
	}
	return result
}

func (b *bindings) log(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, a := range call.Arguments {
		parts[i] = a.String()
	}
	b.tc.Logger().Info(strings.Join(parts, " "))
	return goja.Undefined()
}
