package jit_test

import (
	"context"
	"errors"
	"math"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-callgate/jit"
	"github.com/wippyai/wasm-callgate/runtime"
	"github.com/wippyai/wasm-callgate/wasm"
)

func setup(t *testing.T, opts ...jit.Option) (*jit.Compiler, *runtime.Runtime, *runtime.ModuleInstance) {
	t.Helper()
	comp := jit.NewCompiler(opts...)
	rt, err := runtime.New(comp)
	require.NoError(t, err)
	mod := rt.NewModuleInstance("m")
	t.Cleanup(func() { _ = mod.Close() })
	return comp, rt, mod
}

func TestCompile_Signatures(t *testing.T) {
	comp, _, mod := setup(t)

	tests := []struct {
		name string
		fn   any
		want *wasm.FuncType
	}{
		{"void", func() {}, wasm.NewFuncType(nil, wasm.ValNone)},
		{"i32", func(int32) int32 { return 0 }, wasm.NewFuncType([]wasm.ValType{wasm.ValI32}, wasm.ValI32)},
		{"mixed", func(int64, float32, float64) float64 { return 0 },
			wasm.NewFuncType([]wasm.ValType{wasm.ValI64, wasm.ValF32, wasm.ValF64}, wasm.ValF64)},
		{"ctx", func(context.Context, int32) {}, wasm.NewFuncType([]wasm.ValType{wasm.ValI32}, wasm.ValNone)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := comp.Compile(mod, tt.name, tt.fn)
			require.NoError(t, err)
			assert.Same(t, tt.want, fn.Type())
			assert.Equal(t, "m."+tt.name, fn.Name())
		})
	}
}

func TestCompile_Rejects(t *testing.T) {
	comp, _, mod := setup(t)

	tests := []struct {
		name string
		fn   any
	}{
		{"not a func", 42},
		{"nil func", (func())(nil)},
		{"variadic", func(...int32) {}},
		{"two results", func() (int32, int32) { return 0, 0 }},
		{"int param", func(int) {}},
		{"string result", func() string { return "" }},
		{"ctx not first", func(int32, context.Context) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := comp.Compile(mod, tt.name, tt.fn)
			assert.Error(t, err)
		})
	}
}

func TestCompile_DuplicateName(t *testing.T) {
	comp, _, mod := setup(t)
	_, err := comp.Compile(mod, "f", func() {})
	require.NoError(t, err)
	_, err = comp.Compile(mod, "f", func() {})
	assert.Error(t, err)
}

func TestInvokeThunk_SlotABI(t *testing.T) {
	comp, _, mod := setup(t)

	fn, err := comp.Compile(mod, "mix", func(a int32, b float64) float32 {
		return float32(a) + float32(b)
	})
	require.NoError(t, err)

	thunk := comp.InvokeThunk(fn.Type())
	neg := int32(-2)
	slots := []uint64{uint64(uint32(neg)), math.Float64bits(0.5), 0xdeadbeef}
	thunk(context.Background(), fn.Entry(), slots)

	assert.Equal(t, uint64(math.Float32bits(-1.5)), slots[2])
	assert.Equal(t, uint64(uint32(neg)), slots[0], "parameters are left in place")
}

func TestInvokeThunk_FastPathFallsBackForOtherGoTypes(t *testing.T) {
	comp, rt, mod := setup(t)

	// Same signature as func(int32, int32) int32 but a context-taking Go type.
	fn, err := comp.Compile(mod, "sub", func(_ context.Context, a, b int32) int32 { return a - b })
	require.NoError(t, err)

	res, err := rt.InvokeFunction(context.Background(), fn, []wasm.Value{wasm.I32(1), wasm.I32(3)})
	require.NoError(t, err)
	assert.Equal(t, int32(-2), res.Value.AsI32())
}

func TestDescribeAddress(t *testing.T) {
	comp, rt, mod := setup(t)

	var desc string
	var described bool
	fn, err := comp.Compile(mod, "probe", func() {
		pcs := make([]uintptr, 1)
		goruntime.Callers(1, pcs)
		desc, described = comp.DescribeAddress(pcs[0])
	})
	require.NoError(t, err)

	_, err = rt.InvokeFunction(context.Background(), fn, nil)
	require.NoError(t, err)
	require.True(t, described)
	assert.True(t, strings.HasPrefix(desc, "wasm!m.probe+0x"), desc)

	_, ok := comp.DescribeAddress(0)
	assert.False(t, ok)
	pcs := make([]uintptr, 1)
	goruntime.Callers(1, pcs)
	_, ok = comp.DescribeAddress(pcs[0])
	assert.False(t, ok, "host frames are not generated code")
}

func TestIntrinsics(t *testing.T) {
	comp, rt, mod := setup(t)
	ctx := context.Background()

	div, err := comp.Compile(mod, "div", jit.DivS32)
	require.NoError(t, err)
	div64, err := comp.Compile(mod, "div64", jit.DivS64)
	require.NoError(t, err)
	unreachable, err := comp.Compile(mod, "unreachable", jit.Unreachable)
	require.NoError(t, err)
	abort, err := comp.Compile(mod, "abort", jit.Abort)
	require.NoError(t, err)

	res, err := rt.InvokeFunction(ctx, div, []wasm.Value{wasm.I32(-9), wasm.I32(2)})
	require.NoError(t, err)
	assert.Equal(t, int32(-4), res.Value.AsI32())

	_, err = rt.InvokeFunction(ctx, div, []wasm.Value{wasm.I32(math.MinInt32), wasm.I32(-1)})
	assert.ErrorIs(t, err, runtime.ErrIntegerDivideByZeroOrOverflow)

	_, err = rt.InvokeFunction(ctx, div, []wasm.Value{wasm.I32(1), wasm.I32(0)})
	assert.ErrorIs(t, err, runtime.ErrIntegerDivideByZeroOrOverflow)

	_, err = rt.InvokeFunction(ctx, div64, []wasm.Value{wasm.I64(math.MinInt64), wasm.I64(-1)})
	assert.ErrorIs(t, err, runtime.ErrIntegerDivideByZeroOrOverflow)

	_, err = rt.InvokeFunction(ctx, unreachable, nil)
	assert.ErrorIs(t, err, runtime.ErrReachedUnreachable)

	_, err = rt.InvokeFunction(ctx, abort, nil)
	assert.ErrorIs(t, err, runtime.ErrCalledAbort)
}

func TestIntrinsics_OutsideInvocation(t *testing.T) {
	ctx := context.Background()
	assert.PanicsWithValue(t, "runtime: reached-unreachable thrown outside InvokeFunction", func() { jit.Unreachable(ctx) })
	assert.PanicsWithValue(t, "runtime: called-abort thrown outside InvokeFunction", func() { jit.Abort(ctx) })
}

func TestMaxCallDepth(t *testing.T) {
	comp, rt, mod := setup(t, jit.WithMaxCallDepth(16))

	var self *runtime.FunctionInstance
	var deepest int32
	self, err := comp.Compile(mod, "recurse", func(ctx context.Context, n int32) int32 {
		deepest = n
		rt := runtime.FromContext(ctx)
		res, err := rt.InvokeFunction(ctx, self, []wasm.Value{wasm.I32(n + 1)})
		if err != nil {
			var exc *runtime.Exception
			if errors.As(err, &exc) {
				rt.Throw(exc.Cause)
			}
		}
		return res.Value.AsI32()
	})
	require.NoError(t, err)

	_, err = rt.InvokeFunction(context.Background(), self, []wasm.Value{wasm.I32(1)})
	assert.ErrorIs(t, err, runtime.ErrStackOverflow)
	assert.Equal(t, int32(16), deepest)
}
