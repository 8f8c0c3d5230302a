// Package ksync provides the recursive mutex and binary semaphore tasks use
// to share resources. Waiting is busy-wait-with-yield: a task that cannot
// proceed sleeps one tick and retries. All primitives are task context only.
package ksync

import (
	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/pkg/model"
)

// DefaultLockTimeout is the bound, in ticks, used by callers that have no
// better one.
const DefaultLockTimeout uint32 = 1000

// Wait descriptions recorded for the waiting-task monitor.
const (
	WaitMutex        = "MUTEX_WAIT"
	WaitMutexTimeout = "MUTEX_TIMEOUT"
	WaitSemaphore    = "SEM_WAIT"
)

// Scheduler is what a primitive needs from the kernel, seen from the calling
// task. Delay must not return before the task has been given the CPU again.
type Scheduler interface {
	EnterCritical() cpu.IRQState
	ExitCritical(cpu.IRQState)
	Delay(ticks uint32)
	Now() uint32
	SetWait(id model.TaskID, desc string)
	ClearWait(id model.TaskID)
}
