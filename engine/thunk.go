package engine

import (
	"context"
	stderrors "errors"
	"runtime"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-callgate/platform"
	callgate "github.com/wippyai/wasm-callgate/runtime"
	"github.com/wippyai/wasm-callgate/wasm"
)

// export is the entry of a function loaded by the engine. wazero
// functions are not safe for concurrent calls, so each caller takes
// its own from the pool.
type export struct {
	mod  *Module
	name string
	fns  sync.Pool
}

func newExport(m *Module, name string) *export {
	x := &export{mod: m, name: name}
	x.fns.New = func() any { return m.module.ExportedFunction(name) }
	return x
}

// InvokeThunk returns the thunk for sig. It calls the export on a scratch
// stack and copies the result into the slot after the parameters.
func (e *WazeroEngine) InvokeThunk(sig *wasm.FuncType) callgate.Thunk {
	if t, ok := e.thunks.Load(sig); ok {
		return t.(callgate.Thunk)
	}
	t, _ := e.thunks.LoadOrStore(sig, makeThunk(sig))
	return t.(callgate.Thunk)
}

func makeThunk(sig *wasm.FuncType) callgate.Thunk {
	np := len(sig.Params)
	hasResult := sig.Arity() == 1
	size := max(np, sig.Arity())

	return func(ctx context.Context, entry any, slots []uint64) {
		x := entry.(*export)
		fn := x.fns.Get().(api.Function)
		stack := make([]uint64, size)
		copy(stack, slots[:np])

		if err := fn.CallWithStack(ctx, stack); err != nil {
			x.trap(ctx, err)
			// Clean exit: the result slot holds the zero value.
			if hasResult {
				slots[np] = 0
			}
			return
		}
		x.fns.Put(fn)
		if hasResult {
			slots[np] = stack[0]
		}
	}
}

// Trap messages reported by wazero.
const (
	msgMemoryOOB         = "out of bounds memory access"
	msgInvalidTable      = "invalid table access"
	msgDivideByZero      = "integer divide by zero"
	msgIntegerOverflow   = "integer overflow"
	msgStackOverflow     = "stack overflow"
	msgUnreachable       = "unreachable"
	msgIndirectMismatch  = "indirect call type mismatch"
	msgInvalidConversion = "invalid conversion to integer"
)

// trap turns a failed wazero call into a fault of the enclosing capture
// region or into a thrown exception. It returns only when the guest
// exited with status 0, which completes the call without a result.
func (x *export) trap(ctx context.Context, err error) {
	full := err.Error()
	Logger().Debug("wasm trap",
		zap.String("function", x.mod.instance.Name()+"."+x.name),
		zap.Strings("wasm_stack", wasmStack(full)),
		zap.Error(err))
	msg, _, _ := strings.Cut(full, "\n")

	var exit *sys.ExitError
	switch {
	case stderrors.As(err, &exit):
		if exit.ExitCode() == 0 {
			return
		}
		throw(ctx, err, callgate.CauseCalledAbort)
	case strings.Contains(msg, msgMemoryOOB):
		if x.mod.memory == nil {
			throw(ctx, err, callgate.CauseAccessViolation)
		}
		platform.Raise(platform.FaultIllegalMemoryAccess, x.mod.memory.Base())
	case strings.Contains(msg, msgInvalidTable):
		platform.Raise(platform.FaultIllegalMemoryAccess, x.mod.table.Base())
	case strings.Contains(msg, msgDivideByZero), strings.Contains(msg, msgIntegerOverflow):
		platform.Raise(platform.FaultIntegerDivide, 0)
	case strings.Contains(msg, msgStackOverflow):
		platform.Raise(platform.FaultStackExhaustion, 0)
	case strings.Contains(msg, msgUnreachable):
		throw(ctx, err, callgate.CauseReachedUnreachable)
	case strings.Contains(msg, msgIndirectMismatch):
		throw(ctx, err, callgate.CauseIndirectCallSignatureMismatch)
	case strings.Contains(msg, msgInvalidConversion):
		throw(ctx, err, callgate.CauseInvalidFloatOperation)
	default:
		throw(ctx, err, callgate.CauseCalledAbort)
	}
}

func throw(ctx context.Context, err error, cause callgate.Cause) {
	rt := callgate.FromContext(ctx)
	if rt == nil {
		panic(err)
	}
	rt.Throw(cause)
}

// wasmStack extracts the frames of the wasm stack trace wazero appends to
// trap messages.
func wasmStack(msg string) []string {
	_, trace, ok := strings.Cut(msg, "wasm stack trace:")
	if !ok {
		return nil
	}
	var frames []string
	for _, line := range strings.Split(trace, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			frames = append(frames, line)
		}
	}
	return frames
}

const wazeroPkg = "github.com/tetratelabs/wazero"

// DescribeAddress names frames inside wazero itself. Frames of the
// engine's own thunks are left to the platform.
func (e *WazeroEngine) DescribeAddress(ip uintptr) (string, bool) {
	if ip == 0 {
		return "", false
	}
	f := runtime.FuncForPC(ip - 1)
	if f == nil {
		return "", false
	}
	rest, ok := strings.CutPrefix(f.Name(), wazeroPkg)
	if !ok || rest == "" || (rest[0] != '/' && rest[0] != '.') {
		return "", false
	}
	return "wazero!" + rest[1:], true
}
