package runtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-callgate/errors"
	"github.com/wippyai/wasm-callgate/platform"
	"github.com/wippyai/wasm-callgate/wasm"
)

// Result is the value returned by a guest call. Its type is wasm.ValNone
// when the function declares no result.
type Result struct {
	Value wasm.Value
}

// Empty reports whether the call returned nothing.
func (r Result) Empty() bool {
	return r.Value.Type == wasm.ValNone
}

func (r Result) String() string {
	if r.Empty() {
		return "()"
	}
	return r.Value.String()
}

// guestThrow carries a cause raised by Throw up to InvokeFunction.
type guestThrow struct {
	stack platform.CallStack
	cause Cause
}

func (t *guestThrow) Error() string {
	return "uncaught wasm exception: " + t.cause.String()
}

// Reject out-of-range fault kinds at compile time; a new kind must be
// attributed below before this builds again.
func _() {
	var x [1]struct{}
	_ = x[platform.FaultNone-0]
	_ = x[platform.FaultIllegalMemoryAccess-1]
	_ = x[platform.FaultStackExhaustion-2]
	_ = x[platform.FaultIntegerDivide-3]
	_ = x[platform.FaultKindCount-4]
}

// InvokeFunction calls fn with args. Guest failures are returned as
// *Exception. A memory fault outside every table and memory terminates
// the process.
func (r *Runtime) InvokeFunction(ctx context.Context, fn *FunctionInstance, args []wasm.Value) (res Result, err error) {
	if fn == nil {
		return Result{}, errors.InvalidInput(errors.PhaseInvoke, "nil function")
	}

	sig := fn.typ
	if len(args) != len(sig.Params) {
		r.metrics.invocations.WithLabelValues(outcomeRejected).Inc()
		return Result{}, r.CauseException(CauseInvokeSignatureMismatch)
	}

	slots := make([]uint64, sig.SlotCount())
	for i, arg := range args {
		if arg.Type != sig.Params[i] {
			r.metrics.invocations.WithLabelValues(outcomeRejected).Inc()
			return Result{}, r.CauseException(CauseInvokeSignatureMismatch)
		}
		slots[i] = arg.Bits
	}

	thunk := r.codegen.InvokeThunk(sig)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = withRuntime(ctx, r)

	var caller platform.CallStack
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		t, ok := rec.(*guestThrow)
		if !ok {
			panic(rec)
		}
		r.metrics.invocations.WithLabelValues(outcomeException).Inc()
		res, err = Result{}, r.exception(t.cause, truncate(t.stack, caller))
	}()

	fault := r.platform.RunUnderFaultCapture(func() {
		enterGuest(ctx, r.platform, thunk, fn.entry, slots, &caller)
	})

	if fault.Kind == platform.FaultNone {
		r.metrics.invocations.WithLabelValues(outcomeOK).Inc()
		if sig.Arity() == 0 {
			return Result{Value: wasm.Value{Type: wasm.ValNone}}, nil
		}
		return Result{Value: wasm.FromBits(sig.Result, slots[len(sig.Params)])}, nil
	}

	r.logger.Debug("guest fault",
		zap.String("function", fn.name),
		zap.Stringer("kind", fault.Kind),
		zap.Uintptr("operand", fault.Operand))
	r.metrics.invocations.WithLabelValues(outcomeException).Inc()
	return Result{}, r.attribute(fault, truncate(fault.Stack, caller))
}

// enterGuest marks the boundary between the host and the guest call. The
// caller stack it captures starts at this frame, so every frame the fault
// stack shares with it, plus this one, belongs to the host.
//
//go:noinline
func enterGuest(ctx context.Context, p platform.Platform, thunk Thunk, entry any, slots []uint64, caller *platform.CallStack) {
	*caller = p.CaptureCallStack()
	thunk(ctx, entry, slots)
}

// truncate drops the frames stack shares with caller and the boundary
// frame. At least one frame is always removed.
func truncate(stack, caller platform.CallStack) platform.CallStack {
	s, c := stack.Frames, caller.Frames
	shared := 0
	for shared < len(s) && shared < len(c) && s[len(s)-1-shared].IP == c[len(c)-1-shared].IP {
		shared++
	}

	cut := shared + 1
	if shared == len(c) {
		cut = shared
	}
	cut = max(cut, 1)
	cut = min(cut, len(s))
	return platform.CallStack{Frames: s[:len(s)-cut]}
}

// attribute maps a fault to the exception the caller receives.
func (r *Runtime) attribute(fault platform.Fault, stack platform.CallStack) *Exception {
	switch fault.Kind {
	case platform.FaultIllegalMemoryAccess:
		if r.ownership.IsAddressInSomeTable(fault.Operand) {
			return r.exception(CauseUndefinedTableElement, stack)
		}
		if r.ownership.IsAddressInSomeMemory(fault.Operand) {
			return r.exception(CauseAccessViolation, stack)
		}
		r.fatal("illegal memory access outside any table or memory", fault, stack)
	case platform.FaultStackExhaustion:
		return r.exception(CauseStackOverflow, stack)
	case platform.FaultIntegerDivide:
		return r.exception(CauseIntegerDivideByZeroOrOverflow, stack)
	default:
		r.fatal("unexpected fault kind", fault, stack)
	}
	panic("unreachable")
}

// fatal logs a diagnostic for a fault that is not a guest condition and
// terminates the process.
func (r *Runtime) fatal(msg string, fault platform.Fault, stack platform.CallStack) {
	r.fatalLogger().Error(msg,
		zap.Stringer("kind", fault.Kind),
		zap.String("operand", fmt.Sprintf("%#x", fault.Operand)),
		zap.Strings("stack", r.DescribeCallStack(stack)),
		zap.Strings("full_stack", r.DescribeCallStack(fault.Stack)))
	r.abort()
	panic(fmt.Sprintf("abort returned after %s", msg))
}
