package cpu

// Memory is word-addressed SRAM. Addresses are byte addresses and every access
// is a full aligned word.
type Memory struct {
	base  uint32
	words []uint32
}

// NewMemory returns size bytes of zeroed SRAM starting at base. Both are
// truncated to word alignment.
func NewMemory(base, size uint32) *Memory {
	base &^= 3
	return &Memory{base: base, words: make([]uint32, size/4)}
}

// Base returns the lowest address.
func (m *Memory) Base() uint32 { return m.base }

// Size returns the size in bytes.
func (m *Memory) Size() uint32 { return uint32(len(m.words)) * 4 }

// End returns the address one past the last byte.
func (m *Memory) End() uint32 { return m.base + m.Size() }

// Contains reports whether [addr, addr+n) lies inside the memory.
func (m *Memory) Contains(addr, n uint32) bool {
	if addr < m.base {
		return false
	}
	off := uint64(addr - m.base)
	return off+uint64(n) <= uint64(m.Size())
}

// Load reads the word at addr.
func (m *Memory) Load(addr uint32) uint32 {
	return m.words[m.index(addr)]
}

// Store writes the word at addr.
func (m *Memory) Store(addr, v uint32) {
	m.words[m.index(addr)] = v
}

// Fill writes v into n consecutive words starting at addr.
func (m *Memory) Fill(addr, n, v uint32) {
	for i := uint32(0); i < n; i++ {
		m.Store(addr+i*4, v)
	}
}

func (m *Memory) index(addr uint32) int {
	if addr&3 != 0 {
		raise(FaultUnaligned, addr, "word access")
	}
	if !m.Contains(addr, 4) {
		raise(FaultBus, addr, "outside SRAM [0x%08x, 0x%08x)", m.base, m.End())
	}
	return int((addr - m.base) / 4)
}
