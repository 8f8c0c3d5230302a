package kernel

import (
	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/pkg/model"
)

// Tick is the SysTick handler. It charges the quantum that just ended to the
// running task, advances the countdowns of every task and pends PendSV.
func (k *Kernel) Tick() {
	k.now++
	if len(k.tasks) > 0 {
		cur := &k.tasks[k.current]
		cur.TicksUsed++
		cur.LastRanAt = k.now
	}
	for i := range k.tasks {
		t := &k.tasks[i]
		if t.Policy == model.PolicyPeriodicSkip {
			t.Due = false
		}
		if t.Delay > 0 {
			t.Delay--
		}
		if t.PeriodCountdown > 0 {
			t.PeriodCountdown--
			if t.PeriodCountdown == 0 {
				t.PeriodCountdown = t.Period
				t.Due = true
			}
		}
	}
	k.core.Pend(cpu.PendSV)
}

// Now returns the tick counter.
func (k *Kernel) Now() uint32 { return k.now }
