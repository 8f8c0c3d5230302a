package kernel

import "github.com/me/tickos/pkg/model"

// SelectNext picks the index of the task to run next. Tasks with a pending
// delay are skipped. The first selectable CATCHUP, SKIP or EVENT_DRIVEN task
// in table order wins outright; otherwise the highest priority OPPORTUNISTIC
// task wins, the lowest index breaking ties; otherwise current keeps the CPU.
//
// The only writes are the CATCHUP backlog. A set due latch is consumed. If the
// task is mid-run the latch adds one period to Missed; otherwise Missed is
// raised to clamp((now-LastRun)/Period, 1, MaxMissed). Missed never exceeds
// MaxMissed.
func SelectNext(tasks []TCB, current int, now uint32) int {
	best := -1
	for i := range tasks {
		t := &tasks[i]
		if t.Delay > 0 {
			continue
		}
		switch t.Policy {
		case model.PolicyPeriodicCatchup:
			if t.Due {
				t.Due = false
				if t.InRun {
					if t.Missed < MaxMissed {
						t.Missed++
					}
				} else if n := backlog(now-t.LastRun, t.Period); n > t.Missed {
					t.Missed = n
				}
			}
			if t.Missed > 0 {
				return i
			}
		case model.PolicyPeriodicSkip:
			if t.Due {
				return i
			}
		case model.PolicyEventDriven:
			if t.Active {
				return i
			}
		case model.PolicyOpportunistic:
			if best < 0 || t.Priority > tasks[best].Priority {
				best = i
			}
		}
	}
	if best >= 0 {
		return best
	}
	return current
}

func backlog(elapsed, period uint32) uint32 {
	if period == 0 {
		return 1
	}
	n := elapsed / period
	if n < 1 {
		n = 1
	}
	if n > MaxMissed {
		n = MaxMissed
	}
	return n
}
