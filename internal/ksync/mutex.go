package ksync

import "github.com/me/tickos/pkg/model"

// Mutex is a recursive mutex. The owner may lock it again; it is released
// when Unlock has been called as often as Lock.
type Mutex struct {
	Name  string
	owner model.TaskID
	count uint32
}

// NewMutex returns an unlocked mutex.
func NewMutex(name string) *Mutex {
	return &Mutex{Name: name, owner: model.NoTask}
}

// Owner returns the owning task, or NoTask when unlocked.
func (m *Mutex) Owner() model.TaskID { return m.owner }

// Count returns the recursion depth.
func (m *Mutex) Count() uint32 { return m.count }

func (m *Mutex) acquire(s Scheduler, id model.TaskID) bool {
	st := s.EnterCritical()
	defer s.ExitCritical(st)
	switch m.owner {
	case model.NoTask:
		m.owner = id
		m.count = 1
		return true
	case id:
		m.count++
		return true
	}
	return false
}

// Lock blocks until task id owns the mutex.
func (m *Mutex) Lock(s Scheduler, id model.TaskID) {
	waited := false
	for !m.acquire(s, id) {
		if !waited {
			s.SetWait(id, WaitMutex)
			waited = true
		}
		s.Delay(1)
	}
	if waited {
		s.ClearWait(id)
	}
}

// TryLock takes the mutex if it is free or already owned by id.
func (m *Mutex) TryLock(s Scheduler, id model.TaskID) bool {
	return m.acquire(s, id)
}

// LockTimeout retries for up to timeout ticks and reports whether the mutex
// was taken. A zero timeout makes a single attempt.
func (m *Mutex) LockTimeout(s Scheduler, id model.TaskID, timeout uint32) bool {
	start := s.Now()
	waited := false
	defer func() {
		if waited {
			s.ClearWait(id)
		}
	}()
	for {
		if m.acquire(s, id) {
			return true
		}
		if s.Now()-start >= timeout {
			return false
		}
		if !waited {
			s.SetWait(id, WaitMutexTimeout)
			waited = true
		}
		s.Delay(1)
	}
}

// Unlock releases one level of ownership. Calls by a task that does not own
// the mutex are ignored and reported as false.
func (m *Mutex) Unlock(s Scheduler, id model.TaskID) bool {
	st := s.EnterCritical()
	defer s.ExitCritical(st)
	if m.owner != id || m.count == 0 {
		return false
	}
	m.count--
	if m.count == 0 {
		m.owner = model.NoTask
	}
	return true
}
