package ksync

import "github.com/me/tickos/pkg/model"

// Semaphore is a binary semaphore: Give sets the bit, Wait takes it.
type Semaphore struct {
	Name  string
	value uint8
}

// NewSemaphore returns a semaphore whose bit starts set when given is true.
func NewSemaphore(name string, given bool) *Semaphore {
	s := &Semaphore{Name: name}
	if given {
		s.value = 1
	}
	return s
}

// Value returns the current bit.
func (sem *Semaphore) Value() uint8 { return sem.value }

func (sem *Semaphore) take(s Scheduler) bool {
	st := s.EnterCritical()
	defer s.ExitCritical(st)
	if sem.value == 0 {
		return false
	}
	sem.value = 0
	return true
}

// Wait blocks task id until the bit is set, then clears it.
func (sem *Semaphore) Wait(s Scheduler, id model.TaskID) {
	waited := false
	for !sem.take(s) {
		if !waited {
			s.SetWait(id, WaitSemaphore)
			waited = true
		}
		s.Delay(1)
	}
	if waited {
		s.ClearWait(id)
	}
}

// TryWait clears the bit if it is set and reports whether it was.
func (sem *Semaphore) TryWait(s Scheduler) bool {
	return sem.take(s)
}

// Give sets the bit. Giving an already set semaphore changes nothing.
func (sem *Semaphore) Give(s Scheduler) {
	st := s.EnterCritical()
	sem.value = 1
	s.ExitCritical(st)
}
