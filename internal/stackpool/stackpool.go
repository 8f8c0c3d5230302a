// Package stackpool partitions one static block of SRAM into task stacks and
// scans them for canary damage.
package stackpool

import (
	"fmt"

	"github.com/me/tickos/internal/cpu"
	"github.com/me/tickos/pkg/model"
)

// Canary fills every stack before its frame is written. The lowest word of a
// stack must still hold it for the stack to be considered intact.
const Canary uint32 = 0xA5A5A5A5

// Align is the stack alignment the exception frame requires.
const Align = 8

// Region is one task stack: [Base, Base+Size), growing down from Top.
type Region struct {
	Base uint32
	Size uint32
}

// Top returns the initial stack pointer of the region.
func (r Region) Top() uint32 { return r.Base + r.Size }

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr uint32) bool {
	return addr >= r.Base && addr < r.Top()
}

func (r Region) String() string {
	return fmt.Sprintf("[0x%08x, 0x%08x)", r.Base, r.Top())
}

// Pool hands out stack regions from a fixed block, lowest address first.
// Regions are never returned.
type Pool struct {
	mem  *cpu.Memory
	base uint32
	next uint32
	end  uint32
}

// New creates a pool over [base, base+size) of mem and fills it with the
// canary. base is rounded up and the end down to the stack alignment.
func New(mem *cpu.Memory, base, size uint32) (*Pool, error) {
	if !mem.Contains(base, size) {
		return nil, fmt.Errorf("stack pool [0x%08x, +%d) outside SRAM [0x%08x, 0x%08x)", base, size, mem.Base(), mem.End())
	}
	start := alignUp(base)
	end := (base + size) &^ (Align - 1)
	if end < start {
		end = start
	}
	p := &Pool{mem: mem, base: start, next: start, end: end}
	Seed(mem, Region{Base: start, Size: end - start})
	return p, nil
}

// Alloc carves the next region of at least size bytes and seeds it.
func (p *Pool) Alloc(size uint32) (Region, error) {
	size = alignUp(size)
	if size == 0 || size > p.end-p.next {
		return Region{}, model.NewKernelError(model.ErrPoolExhausted, model.NoTask,
			"need %d bytes, %d of %d left", size, p.end-p.next, p.end-p.base)
	}
	r := Region{Base: p.next, Size: size}
	p.next += size
	Seed(p.mem, r)
	return r, nil
}

// Size returns the usable size of the pool.
func (p *Pool) Size() uint32 { return p.end - p.base }

// Used returns the bytes handed out so far.
func (p *Pool) Used() uint32 { return p.next - p.base }

// Remaining returns the bytes still available.
func (p *Pool) Remaining() uint32 { return p.end - p.next }

// Seed fills the whole region with the canary.
func Seed(mem *cpu.Memory, r Region) {
	mem.Fill(r.Base, r.Size/4, Canary)
}

// Intact reports whether the lowest word of the region still holds the canary.
func Intact(mem *cpu.Memory, r Region) bool {
	return mem.Load(r.Base) == Canary
}

// HighWater returns how many bytes of the region have ever been written,
// measured from the first non-canary word above the base.
func HighWater(mem *cpu.Memory, r Region) uint32 {
	for addr := r.Base; addr < r.Top(); addr += 4 {
		if mem.Load(addr) != Canary {
			return r.Top() - addr
		}
	}
	return 0
}

func alignUp(v uint32) uint32 {
	return (v + Align - 1) &^ (Align - 1)
}
