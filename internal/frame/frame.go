// Package frame builds, saves and restores task contexts in the layout the
// exception return expects. Low to high address a saved context is
//
//	R4-R11, EXC_RETURN | callee FP (if FP frame) | R0-R3, R12, LR, PC, xPSR | S0-S15, FPSCR, reserved (if FP frame)
//
// The lower half is written by the switch handler, the upper half by the core.
package frame

import (
	"fmt"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/internal/stackpool"
	"github.com/me/tickos/pkg/model"
)

// Register patterns of a fresh frame. They make a task's first registers
// recognisable in a memory dump.
const (
	InitR12 uint32 = 0x12121212
	InitR3  uint32 = 0x03030303
	InitR2  uint32 = 0x02020202
	InitR1  uint32 = 0x01010101
	InitR4  uint32 = 0x04040404 // R4+i holds InitR4+i
)

// Words returns the size of a saved context in words.
func Words(fpu cpu.FPU, fp bool) int {
	if !fp {
		return cpu.SWGPWords + cpu.HWBasicWords
	}
	return cpu.SWGPWords + fpu.CalleeFPWords() + cpu.HWBasicWords + cpu.HWFPWords
}

// Build fills region with the canary, writes the initial context of a task
// whose entry point is entry and whose context pointer is arg, and returns
// the stack pointer to store as the task's saved_sp.
func Build(mem *cpu.Memory, r stackpool.Region, entry, arg uint32, fpu cpu.FPU) (uint32, error) {
	if need := fpu.MinStackSize(); r.Size < need {
		return 0, model.NewKernelError(model.ErrStackTooSmall, model.NoTask,
			"stack of %d bytes below the %d byte minimum for FPU %s", r.Size, need, fpu)
	}
	if r.Base%stackpool.Align != 0 || r.Size%stackpool.Align != 0 {
		return 0, fmt.Errorf("stack region %v not %d-byte aligned", r, stackpool.Align)
	}
	if !mem.Contains(r.Base, r.Size) {
		return 0, fmt.Errorf("stack region %v outside SRAM", r)
	}
	stackpool.Seed(mem, r)

	fp := fpu != cpu.FPUNone
	sp := r.Top()

	hw := uint32(cpu.HWBasicWords)
	if fp {
		hw += cpu.HWFPWords
	}
	sp -= hw * 4
	mem.Store(sp, arg)
	mem.Store(sp+4, InitR1)
	mem.Store(sp+8, InitR2)
	mem.Store(sp+12, InitR3)
	mem.Store(sp+16, InitR12)
	mem.Store(sp+20, cpu.ExcReturnFor(fp))
	mem.Store(sp+24, entry)
	mem.Store(sp+28, cpu.XPSRThumb)
	if fp {
		mem.Fill(sp+32, cpu.HWFPWords, 0)
		sp -= uint32(fpu.CalleeFPWords()) * 4
		mem.Fill(sp, uint32(fpu.CalleeFPWords()), 0)
	}

	sp -= cpu.SWGPWords * 4
	for i := uint32(0); i < 8; i++ {
		mem.Store(sp+i*4, InitR4+i)
	}
	mem.Store(sp+32, cpu.ExcReturnFor(fp))
	return sp, nil
}

// Save pushes the software half of the interrupted thread's context onto its
// own stack. It runs in the switch handler, where LR holds the thread's
// EXC_RETURN and PSP points at the hardware frame. It returns the new PSP.
func Save(c *cpu.Core) uint32 {
	m := c.Mem
	sp := c.Regs.PSP
	excReturn := c.Regs.LR
	if cpu.HasFPFrame(excReturn) {
		if first, last, ok := c.FPU().CalleeD(); ok {
			sp -= uint32(last-first+1) * 8
			for d := first; d <= last; d++ {
				addr := sp + uint32(d-first)*8
				m.Store(addr, uint32(c.Regs.D[d]))
				m.Store(addr+4, uint32(c.Regs.D[d]>>32))
			}
		}
	}
	sp -= cpu.SWGPWords * 4
	for i := 0; i < 8; i++ {
		m.Store(sp+uint32(i)*4, c.Regs.R[4+i])
	}
	m.Store(sp+32, excReturn)
	c.Regs.PSP = sp
	return sp
}

// Restore pops the software half of a saved context at sp, leaves PSP on the
// hardware frame and LR holding the EXC_RETURN to leave the handler with.
func Restore(c *cpu.Core, sp uint32) uint32 {
	m := c.Mem
	for i := 0; i < 8; i++ {
		c.Regs.R[4+i] = m.Load(sp + uint32(i)*4)
	}
	excReturn := m.Load(sp + 32)
	sp += cpu.SWGPWords * 4
	if cpu.HasFPFrame(excReturn) {
		if first, last, ok := c.FPU().CalleeD(); ok {
			for d := first; d <= last; d++ {
				addr := sp + uint32(d-first)*8
				c.Regs.D[d] = uint64(m.Load(addr)) | uint64(m.Load(addr+4))<<32
			}
			sp += uint32(last-first+1) * 8
		}
	}
	c.Regs.PSP = sp
	c.Regs.LR = excReturn
	return excReturn
}

// Replay runs the restore path and the exception return against the context
// at sp on a scratch core and returns the registers a resumed task would see.
// Memory is only read.
func Replay(mem *cpu.Memory, sp uint32, fpu cpu.FPU) (regs cpu.Registers, err error) {
	defer cpu.Recover(&err)
	c := cpu.NewCore(mem, fpu)
	c.ExceptionReturn(Restore(c, sp))
	return c.Regs, nil
}
