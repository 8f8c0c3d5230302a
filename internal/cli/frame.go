package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/tickos/internal/board"
	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/internal/frame"
	"github.com/me/tickos/internal/stackpool"
)

func newFrameCmd() *cobra.Command {
	var (
		fpuName string
		stack   string
		entry   uint32
		arg     uint32
	)

	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Print the initial stack frame a new task starts from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fpu, err := cpu.ParseFPU(fpuName)
			if err != nil {
				return err
			}
			size, err := humanize.ParseBytes(stack)
			if err != nil {
				return fmt.Errorf("--stack: %w", err)
			}
			if size > 1<<20 {
				return fmt.Errorf("--stack: %s is larger than the simulated SRAM", humanize.IBytes(size))
			}
			return printFrame(cmd.OutOrStdout(), fpu, uint32(size), entry, arg)
		},
	}

	cmd.Flags().StringVar(&fpuName, "fpu", "none", "FPU variant (none, single, double)")
	cmd.Flags().StringVar(&stack, "stack", "512", "Stack size (e.g. 512, 1KiB)")
	cmd.Flags().Uint32Var(&entry, "entry", board.FlashBase, "Task entry address")
	cmd.Flags().Uint32Var(&arg, "arg", board.ContextBase, "Context pointer passed in R0")

	return cmd
}

// printFrame builds a task frame in a scratch stack region and dumps it,
// lowest address first.
func printFrame(w io.Writer, fpu cpu.FPU, size, entry, arg uint32) error {
	mem := cpu.NewMemory(board.SRAMBase, size+stackpool.Align)
	pool, err := stackpool.New(mem, board.SRAMBase, size+stackpool.Align)
	if err != nil {
		return err
	}
	region, err := pool.Alloc(size)
	if err != nil {
		return err
	}
	sp, err := frame.Build(mem, region, entry, arg, fpu)
	if err != nil {
		return err
	}
	slots, err := frame.Describe(mem, sp, fpu)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "FPU %s, stack %v, saved_sp 0x%08x (%d words)\n\n", fpu, region, sp, len(slots))
	fmt.Fprintf(w, "%-10s  %-10s  %s\n", "ADDR", "SLOT", "VALUE")
	for _, s := range slots {
		fmt.Fprintf(w, "0x%08x  %-10s  0x%08x\n", s.Addr, s.Name, s.Value)
	}
	return nil
}
