// Package platform provides the fault interception and symbolisation
// layer under the call boundary.
//
// # Fault capture
//
// RunUnderFaultCapture runs a function and converts synchronous faults
// raised anywhere below it into a Fault value instead of crashing:
//
//	f := platform.NewNative().RunUnderFaultCapture(func() {
//	    _ = *(*byte)(unsafe.Pointer(res.Base())) // inside a Reservation
//	})
//	f.Kind    // FaultIllegalMemoryAccess
//	f.Operand // res.Base()
//	f.Stack   // innermost frame is the faulting function
//
// The Native implementation relies on the Go runtime:
//
//	Fault source                         Kind
//	───────────────────────────────────────────────────────────
//	access to an unmapped/protected page FaultIllegalMemoryAccess (operand = address)
//	nil pointer dereference              FaultIllegalMemoryAccess (operand = 0)
//	integer division by zero             FaultIntegerDivide
//	Raise(kind, operand)                 kind
//
// Go cannot recover from exhausting its own goroutine stack, and signed
// division overflow does not trap in Go, so code enforcing those limits
// reports them with Raise.
//
// Capture regions are per goroutine and nest: an inner region handles
// faults raised below it, an outer region sees only what escapes.
//
// # Reservations
//
// Reserve maps an inaccessible range of address space. On platforms
// without mmap the range is plain memory and Faulting is false.
package platform
