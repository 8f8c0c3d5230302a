package board

import (
	"fmt"
	"log/slog"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/internal/ksync"
	"github.com/me/tickos/pkg/model"
)

// TaskContext is the per-task context block whose address reaches the body
// in R0. It is the body's only handle on the kernel and implements
// ksync.Scheduler.
type TaskContext struct {
	board *Board
	th    *thread
	id    model.TaskID
	name  string
}

var _ ksync.Scheduler = (*TaskContext)(nil)

// ID returns the task id.
func (tc *TaskContext) ID() model.TaskID { return tc.id }

// Name returns the task name.
func (tc *TaskContext) Name() string { return tc.name }

// Logger returns the board logger tagged with the task.
func (tc *TaskContext) Logger() *slog.Logger {
	return tc.board.logger.With("task", tc.name, "tick", tc.board.kernel.Now())
}

// Now returns the kernel tick.
func (tc *TaskContext) Now() uint32 { return tc.board.kernel.Now() }

// EnterCritical masks interrupts.
func (tc *TaskContext) EnterCritical() cpu.IRQState { return tc.board.kernel.EnterCritical() }

// ExitCritical restores the interrupt mask.
func (tc *TaskContext) ExitCritical(s cpu.IRQState) { tc.board.kernel.ExitCritical(s) }

// SetWait records what the task is spinning on.
func (tc *TaskContext) SetWait(id model.TaskID, desc string) { tc.board.kernel.SetWait(id, desc) }

// ClearWait ends a recorded wait.
func (tc *TaskContext) ClearWait(id model.TaskID) { tc.board.kernel.ClearWait(id) }

// Delay sleeps for ticks ticks. Zero yields the rest of the quantum.
func (tc *TaskContext) Delay(ticks uint32) {
	k := tc.board.kernel
	k.Delay(ticks)
	tc.th.checkpoint()
	for k.DelayRemaining(tc.id) > 0 {
		tc.th.checkpoint()
	}
}

// Work burns n ticks of CPU time.
func (tc *TaskContext) Work(n uint32) {
	for i := uint32(0); i < n; i++ {
		tc.th.checkpoint()
	}
}

// Wake sets the active flag of an EVENT_DRIVEN task.
func (tc *TaskContext) Wake(id model.TaskID) { tc.board.kernel.Wake(id) }

// SetPriority changes an OPPORTUNISTIC task's priority.
func (tc *TaskContext) SetPriority(id model.TaskID, p uint8) { tc.board.kernel.SetPriority(id, p) }

// Lock takes a mutex, waiting as long as needed.
func (tc *TaskContext) Lock(m *ksync.Mutex) { m.Lock(tc, tc.id) }

// TryLock takes a mutex if it is available.
func (tc *TaskContext) TryLock(m *ksync.Mutex) bool { return m.TryLock(tc, tc.id) }

// LockTimeout takes a mutex, giving up after timeout ticks.
func (tc *TaskContext) LockTimeout(m *ksync.Mutex, timeout uint32) bool {
	return m.LockTimeout(tc, tc.id, timeout)
}

// Unlock releases one level of a mutex.
func (tc *TaskContext) Unlock(m *ksync.Mutex) bool { return m.Unlock(tc, tc.id) }

// Wait takes a semaphore, waiting as long as needed.
func (tc *TaskContext) Wait(s *ksync.Semaphore) { s.Wait(tc, tc.id) }

// TryWait takes a semaphore if it is given.
func (tc *TaskContext) TryWait(s *ksync.Semaphore) bool { return s.TryWait(tc) }

// Give sets a semaphore.
func (tc *TaskContext) Give(s *ksync.Semaphore) { s.Give(tc) }

// Reg reads general-purpose register n (0-12).
func (tc *TaskContext) Reg(n int) uint32 { return tc.board.core.Regs.R[n] }

// SetReg writes general-purpose register n (0-12).
func (tc *TaskContext) SetReg(n int, v uint32) { tc.board.core.Regs.R[n] = v }

// UseFPU executes an FP instruction, giving the task FP context, and writes
// d into D register n.
func (tc *TaskContext) UseFPU(n int, d uint64) {
	tc.board.core.TouchFP()
	tc.board.core.Regs.D[n] = d
}

// FPReg reads D register n.
func (tc *TaskContext) FPReg(n int) uint64 { return tc.board.core.Regs.D[n] }

// Call pushes words words onto the task stack, the way a call with that much
// local state would, runs fn and pops them again. A push below the stack
// base overwrites the canary.
func (tc *TaskContext) Call(words uint32, fn func()) {
	c := tc.board.core
	c.Regs.PSP -= words * 4
	for i := uint32(0); i < words; i++ {
		c.Mem.Store(c.Regs.PSP+i*4, 0xCA11<<16|i)
	}
	defer func() { c.Regs.PSP += words * 4 }()
	if fn != nil {
		fn()
	}
}

// Halt stops the board with err. It does not return.
func (tc *TaskContext) Halt(err error) {
	panic(haltSignal{err: fmt.Errorf("task %q: %w", tc.name, err)})
}

// Return simulates the body returning from its entry function into the
// EXC_RETURN trap left in LR by the initial frame.
func (tc *TaskContext) Return() {
	panic(&cpu.Fault{Kind: cpu.FaultTaskReturn, Addr: tc.board.core.Regs.LR,
		Msg: fmt.Sprintf("task %q returned from its entry point", tc.name)})
}
