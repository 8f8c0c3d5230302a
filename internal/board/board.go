// Package board runs the kernel on a simulated core. Each task body runs on
// its own goroutine, but only the goroutine the core is currently executing
// holds the baton: the board resumes it, waits for it to reach a checkpoint,
// then delivers the timer interrupt and lets the exception return decide
// which thread runs next.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/internal/kernel"
	"github.com/me/tickos/internal/stackpool"
	"github.com/me/tickos/pkg/model"
)

// Memory map of the simulated part.
const (
	FlashBase   uint32 = 0x08000000
	SRAMBase    uint32 = 0x20000000
	ContextBase uint32 = 0x10000000 // core-coupled RAM holding task context blocks

	codeStride    uint32 = 0x100
	contextStride uint32 = 0x40
)

// Config holds board configuration.
type Config struct {
	FPU             cpu.FPU
	PoolSize        uint32        // bytes of SRAM reserved for task stacks
	Tick            time.Duration // wall time per tick when Realtime is set
	Realtime        bool
	MonitorInterval uint32 // ticks between monitor runs; 0 disables the monitor task
	MonitorStack    uint32
	Kernel          kernel.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FPU:             cpu.FPUNone,
		PoolSize:        16 * 1024,
		Tick:            time.Millisecond,
		MonitorInterval: 100,
		MonitorStack:    512,
		Kernel:          kernel.DefaultConfig(),
	}
}

// TaskFunc is a task body. The wrapper calls it once per run.
type TaskFunc func(tc *TaskContext)

// TaskConfig describes a task added to the board.
type TaskConfig struct {
	Name      string
	Policy    model.Policy
	Period    uint32
	Priority  uint8
	StackSize uint32
}

// ErrHalted is returned by Run and Step once the board has stopped on a fault.
var ErrHalted = errors.New("board halted")

// Board owns the core, the kernel and the task threads.
type Board struct {
	config Config
	logger *slog.Logger
	core   *cpu.Core
	kernel *kernel.Kernel

	code     map[uint32]TaskFunc
	nextCode uint32
	contexts map[uint32]*TaskContext
	nextCtx  uint32
	threads  map[model.TaskID]*thread

	booted  bool
	halted  error
	ticks   uint32
	quit    chan struct{}
	closed  bool
	monitor model.TaskID
}

// New creates a board with the stack pool at the bottom of SRAM.
func New(cfg Config, logger *slog.Logger) (*Board, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultConfig().PoolSize
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultConfig().Tick
	}
	mem := cpu.NewMemory(SRAMBase, cfg.PoolSize)
	pool, err := stackpool.New(mem, SRAMBase, cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("creating stack pool: %w", err)
	}
	core := cpu.NewCore(mem, cfg.FPU)
	b := &Board{
		config:   cfg,
		logger:   logger.With("component", "board"),
		core:     core,
		kernel:   kernel.New(core, pool, cfg.Kernel, logger),
		code:     make(map[uint32]TaskFunc),
		nextCode: FlashBase,
		contexts: make(map[uint32]*TaskContext),
		nextCtx:  ContextBase,
		threads:  make(map[model.TaskID]*thread),
		quit:     make(chan struct{}),
		monitor:  model.NoTask,
	}
	return b, nil
}

// Kernel returns the kernel.
func (b *Board) Kernel() *kernel.Kernel { return b.kernel }

// Core returns the simulated core.
func (b *Board) Core() *cpu.Core { return b.core }

// Config returns the board configuration.
func (b *Board) Config() Config { return b.config }

// Ticks returns the ticks run so far.
func (b *Board) Ticks() uint32 { return b.ticks }

// Halted returns the fault that stopped the board, if any.
func (b *Board) Halted() error { return b.halted }

// Monitor returns the id of the monitor task, or NoTask.
func (b *Board) Monitor() model.TaskID { return b.monitor }

// link places a body in flash and returns its Thumb entry address.
func (b *Board) link(fn TaskFunc) uint32 {
	b.nextCode += codeStride
	addr := b.nextCode | 1
	b.code[addr] = fn
	return addr
}

func (b *Board) newContext(name string) (*TaskContext, uint32) {
	addr := b.nextCtx
	b.nextCtx += contextStride
	tc := &TaskContext{board: b, name: name, id: model.NoTask}
	b.contexts[addr] = tc
	return tc, addr
}

// AddTask registers a task body with the kernel.
func (b *Board) AddTask(cfg TaskConfig, fn TaskFunc) (model.TaskID, error) {
	if b.booted {
		return model.NoTask, model.NewKernelError(model.ErrAlreadyStarted, model.NoTask,
			"cannot add %q after boot", cfg.Name)
	}
	entry := b.link(fn)
	tc, arg := b.newContext(cfg.Name)
	id, err := b.kernel.Register(kernel.TaskSpec{
		Name:      cfg.Name,
		Entry:     entry,
		Arg:       arg,
		Policy:    cfg.Policy,
		Period:    cfg.Period,
		Priority:  cfg.Priority,
		StackSize: cfg.StackSize,
	})
	if err != nil {
		delete(b.code, entry)
		delete(b.contexts, arg)
		return model.NoTask, fmt.Errorf("adding task %q: %w", cfg.Name, err)
	}
	tc.id = id
	return id, nil
}

// OnSwitch forwards context-switch events to fn.
func (b *Board) OnSwitch(fn func(model.SwitchEvent)) {
	b.kernel.OnSwitch(fn)
}

// Boot binds the exception vectors, initialises the kernel, adds the monitor
// task when configured and starts the first task.
func (b *Board) Boot() error {
	if b.booted {
		return model.NewKernelError(model.ErrAlreadyStarted, model.NoTask, "board already booted")
	}
	b.core.SetVector(cpu.SysTick, b.kernel.Tick)
	b.core.SetVector(cpu.PendSV, b.kernel.SwitchContext)
	b.kernel.Init()

	if b.config.MonitorInterval > 0 {
		id, err := b.AddTask(TaskConfig{
			Name:      "monitor",
			Policy:    model.PolicyOpportunistic,
			Priority:  1,
			StackSize: b.config.MonitorStack,
		}, b.monitorBody)
		if err != nil {
			return fmt.Errorf("boot: %w", err)
		}
		b.monitor = id
	}

	idleEntry := b.link(idleBody)
	idle, idleArg := b.newContext("idle")
	if err := b.kernel.Start(idleEntry, idleArg); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	idle.id = b.kernel.Idle()
	b.booted = true
	b.logger.Info("board booted",
		"fpu", b.config.FPU.String(),
		"tasks", len(b.kernel.Tasks()),
		"pool_used", b.kernel.Pool().Used(),
		"pool_size", b.kernel.Pool().Size(),
	)
	return nil
}

func idleBody(tc *TaskContext) {
	tc.Work(1)
}

// Step runs the current task for one quantum and delivers one tick.
func (b *Board) Step() error {
	if !b.booted {
		return model.NewKernelError(model.ErrNotStarted, model.NoTask, "board not booted")
	}
	if b.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, b.halted)
	}
	if err := b.step(); err != nil {
		b.halted = err
		b.logger.Error("board halted", "tick", b.kernel.Now(), "task", b.currentName(), "error", err)
		return fmt.Errorf("%w: %w", ErrHalted, err)
	}
	return nil
}

// step runs one tick. A task that yields (PendSV pended from thread mode)
// is switched out at once and the next thread gets the rest of the tick; a
// second yield in the same tick waits for the timer.
func (b *Board) step() error {
	if err := b.quantum(); err != nil {
		return err
	}
	if b.core.Pending(cpu.PendSV) && !b.core.Masked() {
		if err := b.interrupt(false); err != nil {
			return err
		}
		if err := b.quantum(); err != nil {
			return err
		}
	}
	b.ticks++
	return b.interrupt(true)
}

func (b *Board) quantum() error {
	if err := b.kernel.CheckResume(); err != nil {
		return err
	}
	th, err := b.threadFor(b.kernel.Current())
	if err != nil {
		return err
	}
	return th.runQuantum()
}

func (b *Board) interrupt(timer bool) (err error) {
	defer cpu.Recover(&err)
	if timer {
		b.core.TimerExpired()
	}
	b.core.Service()
	return nil
}

// threadFor returns the thread of a task, creating it on its first resume
// from the entry address and context pointer the core unstacked.
func (b *Board) threadFor(id model.TaskID) (*thread, error) {
	if th, ok := b.threads[id]; ok {
		return th, nil
	}
	tcb, ok := b.kernel.Task(id)
	if !ok {
		return nil, model.NewKernelError(model.ErrUnknownTask, id, "resumed a task outside the table")
	}
	pc := b.core.Regs.PC
	if pc != tcb.Entry {
		return nil, &cpu.Fault{Kind: cpu.FaultInvalidState, Addr: pc,
			Msg: fmt.Sprintf("task %q started at 0x%08x, entry is 0x%08x", tcb.Name, pc, tcb.Entry)}
	}
	fn, ok := b.code[pc]
	if !ok {
		return nil, &cpu.Fault{Kind: cpu.FaultBus, Addr: pc, Msg: "no code at entry point"}
	}
	tc, ok := b.contexts[b.core.Regs.R[0]]
	if !ok {
		return nil, &cpu.Fault{Kind: cpu.FaultBus, Addr: b.core.Regs.R[0], Msg: "R0 is not a task context pointer"}
	}
	th := newThread(b, tc, fn)
	b.threads[id] = th
	b.logger.Debug("thread started", "task", tcb.Name, "entry", pc)
	return th, nil
}

// Run steps the board ticks times, or until ctx is cancelled or a fault
// halts it. With Realtime set each tick waits for the wall-clock period.
func (b *Board) Run(ctx context.Context, ticks uint32) error {
	var pace <-chan time.Time
	if b.config.Realtime {
		ticker := time.NewTicker(b.config.Tick)
		defer ticker.Stop()
		pace = ticker.C
	}
	for i := uint32(0); i < ticks; i++ {
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Close stops every task goroutine. The board cannot run afterwards.
func (b *Board) Close() {
	if b.closed {
		return
	}
	b.closed = true
	close(b.quit)
	for _, th := range b.threads {
		<-th.done
	}
}

func (b *Board) currentName() string {
	if tcb, ok := b.kernel.Task(b.kernel.Current()); ok {
		return tcb.Name
	}
	return ""
}
