package platform

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
)

// Platform is the fault interception and symbolisation layer the call
// boundary runs on.
type Platform interface {
	// CaptureCallStack returns the stack of the calling goroutine, starting
	// at the caller of CaptureCallStack.
	CaptureCallStack() CallStack

	// RunUnderFaultCapture runs body and reports the first synchronous
	// fault it raised, together with the stack at the fault site. Panics
	// that are not faults propagate unchanged.
	RunUnderFaultCapture(body func()) Fault

	// DescribeAddress symbolises an instruction address.
	DescribeAddress(ip uintptr) (string, bool)
}

// Native is the Go runtime implementation of Platform. Memory faults are
// delivered through debug.SetPanicOnFault, which is scoped to the
// goroutine running the capture region, so regions nest and never leak
// across goroutines.
type Native struct{}

var _ Platform = (*Native)(nil)

// NewNative returns the Go runtime platform.
func NewNative() *Native {
	return &Native{}
}

var (
	raiseName   = runtime.FuncForPC(reflect.ValueOf(Raise).Pointer()).Name()
	captureName = strings.TrimSuffix(raiseName, "Raise") + "(*Native).RunUnderFaultCapture"
)

const initialStackDepth = 64

func (n *Native) CaptureCallStack() CallStack {
	return callers(3)
}

func (n *Native) RunUnderFaultCapture(body func()) (fault Fault) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		kind, operand, ok := classify(r)
		if !ok {
			panic(r)
		}
		fault = Fault{Kind: kind, Operand: operand, Stack: faultStack()}
		Logger().Debug("fault captured",
			zap.Stringer("kind", kind),
			zap.Uintptr("operand", operand),
			zap.Int("frames", fault.Stack.Len()))
	}()
	body()
	return Fault{}
}

func (n *Native) DescribeAddress(ip uintptr) (string, bool) {
	if ip == 0 {
		return "", false
	}
	fn := runtime.FuncForPC(ip - 1)
	if fn == nil {
		return "", false
	}
	file, line := fn.FileLine(ip - 1)
	return fmt.Sprintf("%s (%s:%d)", fn.Name(), filepath.Base(file), line), true
}

// classify maps a recovered panic value to a fault.
func classify(r any) (FaultKind, uintptr, bool) {
	switch v := r.(type) {
	case *Trap:
		return v.Kind, v.Operand, true
	case runtime.Error:
		if a, ok := v.(interface{ Addr() uintptr }); ok {
			return FaultIllegalMemoryAccess, a.Addr(), true
		}
		msg := v.Error()
		switch {
		case strings.Contains(msg, "integer divide by zero"):
			return FaultIntegerDivide, 0, true
		case strings.Contains(msg, "nil pointer dereference"):
			return FaultIllegalMemoryAccess, 0, true
		}
	}
	return FaultNone, 0, false
}

// callers captures the current goroutine's stack. skip follows
// runtime.Callers, counted from callers itself.
func callers(skip int) CallStack {
	pcs := make([]uintptr, initialStackDepth)
	for {
		n := runtime.Callers(skip, pcs)
		if n < len(pcs) {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, len(pcs)*2)
	}
	return StackOf(pcs...)
}

// faultStack captures the stack from inside the recovering defer and
// drops the panic machinery above the faulting frame.
func faultStack() CallStack {
	s := callers(3)
	i := 0
	for i < len(s.Frames) && isTrapMachinery(s.Frames[i].IP) {
		i++
	}
	s.Frames = s.Frames[i:]
	return s
}

func isTrapMachinery(ip uintptr) bool {
	fn := runtime.FuncForPC(ip - 1)
	if fn == nil {
		return false
	}
	name := fn.Name()
	return strings.HasPrefix(name, "runtime.") ||
		name == raiseName ||
		strings.HasPrefix(name, captureName)
}
