package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/mattn/go-tty"
	"github.com/spf13/cobra"

	"github.com/me/tickos/internal/config"
	"github.com/me/tickos/internal/firmware"
	"github.com/me/tickos/pkg/model"
)

// keyReader delivers single keypresses. *tty.TTY satisfies it.
type keyReader interface {
	ReadRune() (rune, error)
}

func newStepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "step <manifest>",
		Short: "Single-step a firmware manifest, one tick per keypress",
		Long: `Boots the manifest on the simulated board and advances one tick for every
space or enter. r prints the task table, s the stack check and q quits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.Load(args[0])
			if err != nil {
				return err
			}
			m.Board.Realtime = false
			fwLogger, clock := firmwareLogger(cmd, m)
			fw, err := firmware.Build(m, fwLogger)
			if err != nil {
				return err
			}
			defer fw.Close()
			clock.Attach(fw.Board)

			t, err := tty.Open()
			if err != nil {
				return fmt.Errorf("open terminal: %w", err)
			}
			defer t.Close()
			return stepLoop(cmd.OutOrStdout(), fw, t)
		},
	}
}

// stepLoop boots fw and drives it from keys until q, end of input or a halt.
func stepLoop(w io.Writer, fw *firmware.Firmware, keys keyReader) error {
	var rec firmware.Recorder
	rec.Attach(fw.Board)
	if err := fw.Boot(); err != nil {
		return err
	}
	k := fw.Board.Kernel()
	names := make(map[model.TaskID]string)
	for _, t := range k.Tasks() {
		names[t.ID] = t.Name
	}
	name := func(id model.TaskID) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id.String()
	}

	fmt.Fprintf(w, "%s booted with %d tasks; running %s\n", fw.Manifest.Name, len(names), name(k.Current()))
	fmt.Fprintln(w, "space/enter: step  r: report  s: stacks  q: quit")
	seen := 0
	for {
		key, err := keys.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read key: %w", err)
		}
		switch key {
		case ' ', '\r', '\n':
			stepErr := fw.Board.Step()
			events := rec.Events()
			for _, e := range events[seen:] {
				fmt.Fprintf(w, "  switch %s -> %s\n", name(e.From), name(e.To))
			}
			seen = len(events)
			if stepErr != nil {
				fmt.Fprintf(w, "tick %d: %v\n", fw.Board.Ticks(), stepErr)
				printTasks(w, k.Report())
				return stepErr
			}
			fmt.Fprintf(w, "tick %d  running %s\n", fw.Board.Ticks(), name(k.Current()))
		case 'r':
			printTasks(w, k.Report())
		case 's':
			stacks, err := k.CheckStacks()
			for _, s := range stacks {
				fmt.Fprintf(w, "  %-14s  used %4d of %4d  canary ok=%t\n", s.Name, s.Used, s.Size, s.CanaryOK)
			}
			if err != nil {
				fmt.Fprintf(w, "  %v\n", err)
			}
		case 'q':
			return nil
		}
	}
}
