package board

// monitorBody is the low-priority watchdog task. Canary damage halts the
// board; long waits and starvation are only reported.
func (b *Board) monitorBody(tc *TaskContext) {
	tc.Delay(b.config.MonitorInterval)

	k := b.kernel
	if _, err := k.CheckStacks(); err != nil {
		tc.Halt(err)
	}
	for _, w := range k.DeadlockSuspects() {
		b.logger.Warn("possible deadlock",
			"task", w.Name,
			"waiting_on", w.Desc,
			"since", w.Since,
			"ticks", w.Ticks,
		)
	}
	for _, s := range k.Starved() {
		b.logger.Warn("task starved", "task", s.Name, "last_ran", s.Since, "ticks", s.Ticks)
	}
}
