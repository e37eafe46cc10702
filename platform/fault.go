package platform

import "fmt"

// FaultKind identifies the synchronous fault caught by a capture region.
type FaultKind uint8

const (
	FaultNone FaultKind = iota
	FaultIllegalMemoryAccess
	FaultStackExhaustion
	FaultIntegerDivide

	// FaultKindCount is the number of fault kinds. Keep it last.
	FaultKindCount
)

func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultIllegalMemoryAccess:
		return "illegal memory access"
	case FaultStackExhaustion:
		return "stack exhaustion"
	case FaultIntegerDivide:
		return "integer divide fault"
	default:
		return fmt.Sprintf("fault(%d)", uint8(k))
	}
}

// Fault describes the outcome of RunUnderFaultCapture. Kind is FaultNone
// when the body completed normally.
type Fault struct {
	Stack   CallStack
	Operand uintptr
	Kind    FaultKind
}

// Trap is a software-raised fault. Code that detects a fault condition
// the hardware does not report (call depth budgets, signed division
// overflow, traps of an embedded engine) raises one with Raise.
type Trap struct {
	Operand uintptr
	Kind    FaultKind
}

func (t *Trap) Error() string {
	if t.Operand != 0 {
		return fmt.Sprintf("%s at %#x", t.Kind, t.Operand)
	}
	return t.Kind.String()
}

// Raise delivers a fault to the innermost capture region on the current
// goroutine. It does not return.
//
//go:noinline
func Raise(kind FaultKind, operand uintptr) {
	panic(&Trap{Kind: kind, Operand: operand})
}
