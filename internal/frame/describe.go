package frame

import (
	"fmt"

	"github.com/me/tickos/internal/cpu"
)

// Slot is one labelled word of a saved context.
type Slot struct {
	Addr  uint32
	Name  string
	Value uint32
}

// Describe labels every word of the saved context at sp, lowest address
// first. The frame type is taken from the saved EXC_RETURN.
func Describe(mem *cpu.Memory, sp uint32, fpu cpu.FPU) (slots []Slot, err error) {
	defer cpu.Recover(&err)
	fp := cpu.HasFPFrame(mem.Load(sp + 32))

	var names []string
	for i := 4; i <= 11; i++ {
		names = append(names, fmt.Sprintf("R%d", i))
	}
	names = append(names, "EXC_RETURN")
	if fp {
		first, last, _ := fpu.CalleeD()
		for d := first; d <= last; d++ {
			names = append(names, calleeNames(fpu, d)...)
		}
	}
	names = append(names, "R0", "R1", "R2", "R3", "R12", "LR", "PC", "xPSR")
	if fp {
		for i := 0; i < 16; i++ {
			names = append(names, fmt.Sprintf("S%d", i))
		}
		names = append(names, "FPSCR", "reserved")
	}

	slots = make([]Slot, len(names))
	for i, name := range names {
		addr := sp + uint32(i)*4
		slots[i] = Slot{Addr: addr, Name: name, Value: mem.Load(addr)}
	}
	return slots, nil
}

func calleeNames(fpu cpu.FPU, d int) []string {
	if fpu == cpu.FPUSingle {
		return []string{fmt.Sprintf("S%d", 2*d), fmt.Sprintf("S%d", 2*d+1)}
	}
	return []string{fmt.Sprintf("D%d.lo", d), fmt.Sprintf("D%d.hi", d)}
}
