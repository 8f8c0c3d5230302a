package cpu

import (
	"errors"
	"testing"
)

func TestMemory_LoadStore(t *testing.T) {
	m := NewMemory(0x20000000, 64)
	m.Store(0x20000010, 0xdeadbeef)
	if got := m.Load(0x20000010); got != 0xdeadbeef {
		t.Errorf("Load = 0x%08x, want 0xdeadbeef", got)
	}
	if m.End() != 0x20000040 {
		t.Errorf("End = 0x%08x, want 0x20000040", m.End())
	}
}

func TestMemory_Contains(t *testing.T) {
	m := NewMemory(0x1000, 0x100)
	tests := []struct {
		addr, n uint32
		want    bool
	}{
		{0x1000, 4, true},
		{0x10fc, 4, true},
		{0x10fc, 8, false},
		{0x0ffc, 4, false},
		{0xfffffffc, 8, false},
	}
	for _, tt := range tests {
		if got := m.Contains(tt.addr, tt.n); got != tt.want {
			t.Errorf("Contains(0x%x, %d) = %v, want %v", tt.addr, tt.n, got, tt.want)
		}
	}
}

func TestMemory_Faults(t *testing.T) {
	m := NewMemory(0x1000, 0x100)
	tests := []struct {
		name string
		addr uint32
		kind FaultKind
	}{
		{"below", 0x0ff0, FaultBus},
		{"above", 0x1100, FaultBus},
		{"unaligned", 0x1002, FaultUnaligned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := func() (err error) {
				defer Recover(&err)
				m.Load(tt.addr)
				return nil
			}()
			var f *Fault
			if !errors.As(err, &f) {
				t.Fatalf("expected *Fault, got %v", err)
			}
			if f.Kind != tt.kind || f.Addr != tt.addr {
				t.Errorf("fault = %v, want %s at 0x%x", f, tt.kind, tt.addr)
			}
		})
	}
}

func TestRecover_PropagatesOtherPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recover() = %v, want boom", r)
		}
	}()
	func() {
		var err error
		defer Recover(&err)
		panic("boom")
	}()
}
