package cpu

import (
	"fmt"
	"strings"
)

// FPU is the floating-point configuration of the core.
type FPU uint8

const (
	FPUNone   FPU = iota
	FPUSingle     // FPv4-SP: S0-S31
	FPUDouble     // FPv5 with a 32-entry D bank
)

// Frame part sizes in words.
const (
	HWBasicWords = 8  // R0-R3, R12, LR, PC, xPSR
	HWFPWords    = 18 // S0-S15 (D0-D7), FPSCR, reserved
	SWGPWords    = 9  // R4-R11, EXC_RETURN

	// CallMarginBytes is the one call depth a task needs on top of its frame.
	CallMarginBytes = 8
)

func (f FPU) String() string {
	switch f {
	case FPUNone:
		return "none"
	case FPUSingle:
		return "single"
	case FPUDouble:
		return "double"
	}
	return fmt.Sprintf("FPU(%d)", uint8(f))
}

// ParseFPU accepts "none", "single" and "double" (plus "sp"/"dp").
func ParseFPU(s string) (FPU, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FPUNone, nil
	case "single", "sp":
		return FPUSingle, nil
	case "double", "dp":
		return FPUDouble, nil
	}
	return FPUNone, fmt.Errorf("unknown FPU configuration %q", s)
}

// CalleeD returns the range [first, last] of D registers the switch handler
// saves in software when the task has FP context. ok is false without an FPU.
func (f FPU) CalleeD() (first, last int, ok bool) {
	switch f {
	case FPUSingle:
		return 8, 15, true // S16-S31
	case FPUDouble:
		return 8, 31, true
	}
	return 0, 0, false
}

// CalleeFPWords is the size of the software-saved FP block.
func (f FPU) CalleeFPWords() int {
	first, last, ok := f.CalleeD()
	if !ok {
		return 0
	}
	return (last - first + 1) * 2
}

// FrameWords is the size of a full saved context, FP state included when the
// configuration has an FPU.
func (f FPU) FrameWords() int {
	if f == FPUNone {
		return SWGPWords + HWBasicWords
	}
	return SWGPWords + f.CalleeFPWords() + HWBasicWords + HWFPWords
}

// MinStackSize is the smallest stack a task may register with: the worst-case
// frame plus one call depth, rounded up to 8 bytes.
func (f FPU) MinStackSize() uint32 {
	n := uint32(f.FrameWords()*4 + CallMarginBytes)
	return (n + 7) &^ 7
}
