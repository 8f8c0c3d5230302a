package cpu

import "fmt"

// FaultKind classifies a fault raised by the simulated core.
type FaultKind string

const (
	FaultBus           FaultKind = "BUS_FAULT"
	FaultUnaligned     FaultKind = "UNALIGNED"
	FaultInvalidReturn FaultKind = "INVALID_EXC_RETURN"
	FaultInvalidState  FaultKind = "INVALID_STATE"
	FaultNoCoprocessor FaultKind = "NO_COPROCESSOR"
	FaultTaskReturn    FaultKind = "TASK_RETURN"
)

// Fault is what the HardFault vector would see. The core raises it with panic
// from deep inside a memory access or exception return; Recover turns it back
// into an error at the boundary that owns the faulting context.
type Fault struct {
	Kind FaultKind
	Addr uint32
	Msg  string
}

func (f *Fault) Error() string {
	if f.Msg == "" {
		return fmt.Sprintf("%s at 0x%08x", f.Kind, f.Addr)
	}
	return fmt.Sprintf("%s at 0x%08x: %s", f.Kind, f.Addr, f.Msg)
}

func raise(kind FaultKind, addr uint32, format string, args ...any) {
	panic(&Fault{Kind: kind, Addr: addr, Msg: fmt.Sprintf(format, args...)})
}

// Recover stores a panicking *Fault into *err. Any other panic is re-raised.
// It must be called directly by defer.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if f, ok := r.(*Fault); ok {
		*err = f
		return
	}
	panic(r)
}
