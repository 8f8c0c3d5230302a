package cpu

import "fmt"

// Exception is a system exception number.
type Exception uint8

const (
	SVCall  Exception = 11
	PendSV  Exception = 14
	SysTick Exception = 15

	numExceptions = 16
)

func (e Exception) String() string {
	switch e {
	case SVCall:
		return "SVCall"
	case PendSV:
		return "PendSV"
	case SysTick:
		return "SysTick"
	}
	return fmt.Sprintf("Exception(%d)", uint8(e))
}

// IRQState is the PRIMASK value saved by DisableIRQ.
type IRQState bool

// Core is a single Cortex-M class core as seen by the kernel: a register file,
// SRAM, PRIMASK, the pending bits of the system exceptions and the automatic
// stacking done on exception entry and return. Only one goroutine may drive a
// Core at a time.
type Core struct {
	Mem  *Memory
	Regs Registers

	fpu      FPU
	primask  bool
	fpca     bool
	handler  bool
	tickOn   bool
	active   Exception
	pending  uint32
	priority [numExceptions]uint8
	vectors  [numExceptions]func()
}

// NewCore returns a core in thread mode with interrupts enabled.
func NewCore(mem *Memory, fpu FPU) *Core {
	return &Core{Mem: mem, fpu: fpu}
}

// FPU returns the floating-point configuration.
func (c *Core) FPU() FPU { return c.fpu }

// DisableIRQ sets PRIMASK and returns its previous value.
func (c *Core) DisableIRQ() IRQState {
	prev := c.primask
	c.primask = true
	return IRQState(prev)
}

// RestoreIRQ puts PRIMASK back to a value returned by DisableIRQ.
func (c *Core) RestoreIRQ(s IRQState) {
	c.primask = bool(s)
}

// Masked reports whether PRIMASK is set.
func (c *Core) Masked() bool { return c.primask }

// InHandler reports whether the core is executing an exception handler.
func (c *Core) InHandler() bool { return c.handler }

// Active returns the exception being handled, or 0 in thread mode.
func (c *Core) Active() Exception { return c.active }

// SetVector binds a handler to an exception.
func (c *Core) SetVector(e Exception, fn func()) {
	c.vectors[e] = fn
}

// SetPriority sets the priority of an exception. Lower values win.
func (c *Core) SetPriority(e Exception, p uint8) {
	c.priority[e] = p
}

// Priority returns the priority of an exception.
func (c *Core) Priority(e Exception) uint8 {
	return c.priority[e]
}

// Pend marks an exception pending.
func (c *Core) Pend(e Exception) {
	c.pending |= 1 << e
}

// Pending reports whether an exception is pending.
func (c *Core) Pending(e Exception) bool {
	return c.pending&(1<<e) != 0
}

// EnableSysTick starts or stops the periodic timer.
func (c *Core) EnableSysTick(on bool) { c.tickOn = on }

// SysTickEnabled reports whether the periodic timer runs.
func (c *Core) SysTickEnabled() bool { return c.tickOn }

// TimerExpired is called when the SysTick counter reaches zero.
func (c *Core) TimerExpired() {
	if c.tickOn {
		c.Pend(SysTick)
	}
}

// TouchFP marks the current thread as owning FP context, the way the first
// FP instruction sets CONTROL.FPCA.
func (c *Core) TouchFP() {
	if c.fpu == FPUNone {
		raise(FaultNoCoprocessor, c.Regs.PC, "FP instruction without an FPU")
	}
	c.fpca = true
}

// FPActive reports CONTROL.FPCA.
func (c *Core) FPActive() bool { return c.fpca }

// Service takes every pending exception that PRIMASK allows, highest
// priority first, tail-chaining between handlers, then returns to the thread
// named by the EXC_RETURN left in LR. It reports whether any handler ran.
func (c *Core) Service() bool {
	if c.primask || c.handler {
		return false
	}
	e, ok := c.nextPending()
	if !ok {
		return false
	}
	c.stack()
	for ok {
		c.pending &^= 1 << e
		c.active = e
		if fn := c.vectors[e]; fn != nil {
			fn()
		}
		e, ok = c.nextPending()
	}
	c.active = 0
	c.ExceptionReturn(c.Regs.LR)
	return true
}

func (c *Core) nextPending() (Exception, bool) {
	best, found := Exception(0), false
	for e := Exception(0); e < numExceptions; e++ {
		if !c.Pending(e) {
			continue
		}
		if !found || c.priority[e] < c.priority[best] {
			best, found = e, true
		}
	}
	return best, found
}

// stack pushes the hardware frame of the interrupted thread onto PSP and
// enters handler mode.
func (c *Core) stack() {
	ext := c.fpca && c.fpu != FPUNone
	words := uint32(HWBasicWords)
	if ext {
		words += HWFPWords
	}
	sp := c.Regs.PSP
	xpsr := c.Regs.XPSR &^ XPSRAligned
	if sp&7 != 0 {
		sp -= 4
		xpsr |= XPSRAligned
	}
	sp -= words * 4

	m := c.Mem
	m.Store(sp, c.Regs.R[0])
	m.Store(sp+4, c.Regs.R[1])
	m.Store(sp+8, c.Regs.R[2])
	m.Store(sp+12, c.Regs.R[3])
	m.Store(sp+16, c.Regs.R[12])
	m.Store(sp+20, c.Regs.LR)
	m.Store(sp+24, c.Regs.PC)
	m.Store(sp+28, xpsr)
	if ext {
		for i := 0; i < 16; i++ {
			m.Store(sp+32+uint32(i)*4, c.Regs.S(i))
		}
		m.Store(sp+96, c.Regs.FPSCR)
		m.Store(sp+100, 0)
	}

	c.Regs.PSP = sp
	c.Regs.LR = ExcReturnFor(ext)
	c.handler = true
	c.fpca = false
}

// ExceptionReturn unstacks the hardware frame at PSP and resumes thread mode.
// StartFirstTask uses it directly for the one manual context load.
func (c *Core) ExceptionReturn(excReturn uint32) {
	if !ValidExcReturn(excReturn) {
		raise(FaultInvalidReturn, excReturn, "not a thread-mode PSP return")
	}
	ext := HasFPFrame(excReturn)
	if ext && c.fpu == FPUNone {
		raise(FaultNoCoprocessor, excReturn, "FP frame on a core without an FPU")
	}

	m := c.Mem
	sp := c.Regs.PSP
	xpsr := m.Load(sp + 28)
	if xpsr&XPSRThumb == 0 {
		raise(FaultInvalidState, sp+28, "stacked xPSR 0x%08x has no Thumb bit", xpsr)
	}
	c.Regs.R[0] = m.Load(sp)
	c.Regs.R[1] = m.Load(sp + 4)
	c.Regs.R[2] = m.Load(sp + 8)
	c.Regs.R[3] = m.Load(sp + 12)
	c.Regs.R[12] = m.Load(sp + 16)
	c.Regs.LR = m.Load(sp + 20)
	c.Regs.PC = m.Load(sp + 24)
	words := uint32(HWBasicWords)
	if ext {
		for i := 0; i < 16; i++ {
			c.Regs.SetS(i, m.Load(sp+32+uint32(i)*4))
		}
		c.Regs.FPSCR = m.Load(sp + 96)
		words += HWFPWords
	}
	sp += words * 4
	if xpsr&XPSRAligned != 0 {
		sp += 4
	}

	c.Regs.XPSR = xpsr &^ XPSRAligned
	c.Regs.PSP = sp
	c.handler = false
	c.fpca = ext
}
