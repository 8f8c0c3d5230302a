package cpu

// EXC_RETURN values for a return to thread mode on the process stack.
const (
	ExcReturnThreadPSP   uint32 = 0xFFFFFFFD
	ExcReturnThreadPSPFP uint32 = 0xFFFFFFED

	// Bit 4 clear means the stacked frame carries the FP extension.
	excReturnFType uint32 = 1 << 4
)

// xPSR bits.
const (
	XPSRThumb   uint32 = 0x01000000
	XPSRAligned uint32 = 1 << 9
)

// HasFPFrame reports whether an EXC_RETURN value selects the extended frame.
func HasFPFrame(excReturn uint32) bool {
	return excReturn&excReturnFType == 0
}

// ValidExcReturn reports whether v is one of the two thread-mode PSP returns
// the kernel ever produces.
func ValidExcReturn(v uint32) bool {
	return v == ExcReturnThreadPSP || v == ExcReturnThreadPSPFP
}

// ExcReturnFor returns the EXC_RETURN matching the frame type.
func ExcReturnFor(fp bool) uint32 {
	if fp {
		return ExcReturnThreadPSPFP
	}
	return ExcReturnThreadPSP
}

// Registers is the architectural register file. S registers alias the low
// half of the D bank: S(2n) is the low word of D(n), S(2n+1) the high word.
type Registers struct {
	R     [13]uint32 // R0-R12
	LR    uint32
	PC    uint32
	XPSR  uint32
	PSP   uint32
	MSP   uint32
	D     [32]uint64
	FPSCR uint32
}

// S returns single-precision register i (0-31).
func (r *Registers) S(i int) uint32 {
	d := r.D[i/2]
	if i%2 == 1 {
		return uint32(d >> 32)
	}
	return uint32(d)
}

// SetS writes single-precision register i (0-31).
func (r *Registers) SetS(i int, v uint32) {
	d := r.D[i/2]
	if i%2 == 1 {
		d = d&0x00000000FFFFFFFF | uint64(v)<<32
	} else {
		d = d&0xFFFFFFFF00000000 | uint64(v)
	}
	r.D[i/2] = d
}
