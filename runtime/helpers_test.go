package runtime_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-callgate/platform"
	"github.com/wippyai/wasm-callgate/runtime"
	"github.com/wippyai/wasm-callgate/wasm"
)

// fakeCodegen records thunk invocations and runs body, if set.
type fakeCodegen struct {
	body  runtime.Thunk
	names map[uintptr]string
	calls atomic.Int32
	mu    sync.Mutex
	sigs  []*wasm.FuncType
}

func (f *fakeCodegen) InvokeThunk(sig *wasm.FuncType) runtime.Thunk {
	f.mu.Lock()
	f.sigs = append(f.sigs, sig)
	f.mu.Unlock()
	return func(ctx context.Context, entry any, slots []uint64) {
		f.calls.Add(1)
		if f.body != nil {
			f.body(ctx, entry, slots)
		}
	}
}

func (f *fakeCodegen) DescribeAddress(ip uintptr) (string, bool) {
	s, ok := f.names[ip]
	return s, ok
}

// fakePlatform returns a fixed stack and runs bodies without capture.
type fakePlatform struct {
	stack platform.CallStack
	names map[uintptr]string
}

func (p *fakePlatform) CaptureCallStack() platform.CallStack { return p.stack }

func (p *fakePlatform) RunUnderFaultCapture(body func()) platform.Fault {
	body()
	return platform.Fault{}
}

func (p *fakePlatform) DescribeAddress(ip uintptr) (string, bool) {
	s, ok := p.names[ip]
	return s, ok
}

func newRuntime(t *testing.T, cg runtime.CodeGenerator, opts ...runtime.Option) *runtime.Runtime {
	t.Helper()
	rt, err := runtime.New(cg, opts...)
	require.NoError(t, err)
	return rt
}

func newModule(t *testing.T, rt *runtime.Runtime) *runtime.ModuleInstance {
	t.Helper()
	mod := rt.NewModuleInstance("m")
	t.Cleanup(func() { _ = mod.Close() })
	return mod
}

func requireFaulting(t *testing.T) {
	t.Helper()
	if !platform.Faulting {
		t.Skip("reservations do not fault on this platform")
	}
}

func sig(result wasm.ValType, params ...wasm.ValType) *wasm.FuncType {
	return wasm.NewFuncType(params, result)
}

//go:noinline
func readByte(addr uintptr) byte {
	return *(*byte)(unsafe.Pointer(addr))
}
