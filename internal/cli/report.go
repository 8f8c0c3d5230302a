package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/me/tickos/pkg/model"
)

// printRun writes the run header followed by its task table.
func printRun(w io.Writer, run *model.Run) {
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Name:      %s\n", run.Name)
	fmt.Fprintf(w, "FPU:       %s\n", run.FPU)
	fmt.Fprintf(w, "State:     %s\n", run.State)
	if run.HaltReason != "" {
		fmt.Fprintf(w, "Halted:    %s\n", run.HaltReason)
	}
	fmt.Fprintf(w, "Ticks:     %d\n", run.Ticks)
	fmt.Fprintf(w, "Switches:  %d\n", run.Switches)
	fmt.Fprintf(w, "Created:   %s (%s)\n", run.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(run.CreatedAt))
	fmt.Fprintln(w)
	printTasks(w, run.Tasks)
}

// printTasks writes one row per task report with its CPU share and stack
// high-water mark.
func printTasks(w io.Writer, tasks []model.TaskReport) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	share := model.CPUShare(tasks)
	fmt.Fprintf(w, "%-3s  %-14s  %-8s  %4s  %6s  %6s  %6s  %6s  %-19s  %s\n",
		"ID", "NAME", "POLICY", "PRIO", "PERIOD", "RUNS", "MISSED", "CPU", "STACK", "CANARY")
	for _, t := range tasks {
		period := "-"
		if t.Policy.IsPeriodic() {
			period = fmt.Sprint(t.Period)
		}
		canary := "ok"
		if !t.CanaryOK {
			canary = "CORRUPT"
		}
		stack := humanize.IBytes(uint64(t.StackUsed)) + " / " + humanize.IBytes(uint64(t.StackSize))
		fmt.Fprintf(w, "%-3d  %-14s  %-8s  %4d  %6s  %6d  %6d  %5.1f%%  %-19s  %s\n",
			t.ID, t.Name, t.Policy.Short(), t.Priority, period, t.Runs, t.Missed, share[t.ID]*100, stack, canary)
		if t.WaitDesc != "" {
			fmt.Fprintf(w, "     waiting: %s\n", t.WaitDesc)
		}
	}
}

// printSwitches writes a switch trace, naming tasks from the run's reports.
func printSwitches(w io.Writer, run *model.Run, events []model.SwitchEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No switches.")
		return
	}
	names := make(map[model.TaskID]string, len(run.Tasks))
	for _, t := range run.Tasks {
		names[t.ID] = t.Name
	}
	name := func(id model.TaskID) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id.String()
	}
	fmt.Fprintf(w, "%8s  %-14s  %s\n", "TICK", "FROM", "TO")
	for _, e := range events {
		fmt.Fprintf(w, "%8d  %-14s  %s\n", e.Tick, name(e.From), name(e.To))
	}
}
