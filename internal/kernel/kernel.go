// Package kernel is the scheduler core: the task table, the tick service, the
// policy engine and the context-switch handler. All state lives in one Kernel
// value driven through a simulated core; nothing here blocks.
package kernel

import (
	"log/slog"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/internal/stackpool"
	"github.com/me/tickos/pkg/model"
)

// Config holds kernel configuration.
type Config struct {
	MaxTasks         int    // table capacity, idle task included
	LockTimeout      uint32 // ticks before a waiting task counts as a deadlock suspect
	StarvationWindow uint32 // ticks an opportunistic task may go without the CPU; 0 disables
	PendSVPriority   uint8
	SysTickPriority  uint8
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTasks:         8,
		LockTimeout:      1000,
		StarvationWindow: 500,
		PendSVPriority:   0xFF,
		SysTickPriority:  0xF0,
	}
}

// Kernel owns every piece of scheduler state.
type Kernel struct {
	core   *cpu.Core
	pool   *stackpool.Pool
	config Config
	logger *slog.Logger

	tasks    []TCB
	current  int
	now      uint32
	started  bool
	idle     model.TaskID
	switches int
	onSwitch func(model.SwitchEvent)
}

// New creates a kernel that schedules on core and carves stacks from pool.
func New(core *cpu.Core, pool *stackpool.Pool, cfg Config, logger *slog.Logger) *Kernel {
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = DefaultConfig().MaxTasks
	}
	if cfg.MaxTasks > int(model.NoTask) {
		cfg.MaxTasks = int(model.NoTask)
	}
	return &Kernel{
		core:   core,
		pool:   pool,
		config: cfg,
		logger: logger.With("component", "kernel"),
		tasks:  make([]TCB, 0, cfg.MaxTasks),
		idle:   model.NoTask,
	}
}

// Init sets the exception priorities: PendSV lowest so it never preempts
// other handlers, SysTick just above it so the tick service always runs
// before a pending switch.
func (k *Kernel) Init() {
	k.core.SetPriority(cpu.PendSV, k.config.PendSVPriority)
	k.core.SetPriority(cpu.SysTick, k.config.SysTickPriority)
	k.logger.Info("kernel initialised",
		"max_tasks", k.config.MaxTasks,
		"fpu", k.core.FPU().String(),
		"pool_bytes", k.pool.Size(),
		"min_stack", k.core.FPU().MinStackSize(),
	)
}

// Config returns the kernel configuration.
func (k *Kernel) Config() Config { return k.config }

// Core returns the core the kernel runs on.
func (k *Kernel) Core() *cpu.Core { return k.core }

// Pool returns the stack pool.
func (k *Kernel) Pool() *stackpool.Pool { return k.pool }

// OnSwitch registers a callback invoked by the switch handler whenever the
// running task changes. It runs in handler context and must not block.
func (k *Kernel) OnSwitch(fn func(model.SwitchEvent)) {
	k.onSwitch = fn
}

func (k *Kernel) enter() cpu.IRQState { return k.core.DisableIRQ() }

func (k *Kernel) exit(s cpu.IRQState) { k.core.RestoreIRQ(s) }

// EnterCritical masks interrupts for a task-level critical section.
func (k *Kernel) EnterCritical() cpu.IRQState { return k.enter() }

// ExitCritical ends a critical section started by EnterCritical.
func (k *Kernel) ExitCritical(s cpu.IRQState) { k.exit(s) }
