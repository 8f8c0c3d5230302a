package board

import (
	"fmt"
	"runtime"

	"github.com/me/tickos/internal/cpu"
)

// thread is the goroutine behind one task. It only runs between a resume and
// the next checkpoint.
type thread struct {
	board  *Board
	tc     *TaskContext
	fn     TaskFunc
	resume chan struct{}
	yield  chan error
	done   chan struct{}
}

// haltSignal unwinds a task goroutine that asked the board to stop.
type haltSignal struct{ err error }

func newThread(b *Board, tc *TaskContext, fn TaskFunc) *thread {
	th := &thread{
		board:  b,
		tc:     tc,
		fn:     fn,
		resume: make(chan struct{}),
		yield:  make(chan error),
		done:   make(chan struct{}),
	}
	tc.th = th
	go th.run()
	return th
}

// runQuantum hands the baton to the thread and waits for it back.
func (th *thread) runQuantum() error {
	th.resume <- struct{}{}
	return <-th.yield
}

// run is the task wrapper: stamp the run, call the body, drain the run's
// bookkeeping, yield.
func (th *thread) run() {
	defer close(th.done)
	defer th.recoverFault()
	th.park()

	k := th.board.kernel
	id := th.tc.id
	for {
		k.BeginRun(id)
		th.fn(th.tc)
		k.EndRun(id)
		th.checkpoint()
	}
}

// checkpoint ends the current quantum.
func (th *thread) checkpoint() {
	th.yield <- nil
	th.park()
}

func (th *thread) park() {
	select {
	case <-th.resume:
	case <-th.board.quit:
		runtime.Goexit()
	}
}

func (th *thread) recoverFault() {
	r := recover()
	if r == nil {
		return
	}
	var err error
	switch v := r.(type) {
	case *cpu.Fault:
		err = v
	case haltSignal:
		err = v.err
	default:
		err = fmt.Errorf("task %q panicked: %v", th.tc.name, v)
	}
	th.yield <- err
}
