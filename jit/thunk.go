package jit

import (
	"context"
	"math"
	"reflect"

	"github.com/wippyai/wasm-callgate/platform"
	"github.com/wippyai/wasm-callgate/runtime"
	"github.com/wippyai/wasm-callgate/wasm"
)

type depthKey struct{}

type decoder func(bits uint64) reflect.Value

type encoder func(v reflect.Value) uint64

// InvokeThunk returns the thunk for sig. Thunks are built once per
// signature and shared by every function of that signature.
func (c *Compiler) InvokeThunk(sig *wasm.FuncType) runtime.Thunk {
	if t, ok := c.thunks.Load(sig); ok {
		return t.(runtime.Thunk)
	}
	t, _ := c.thunks.LoadOrStore(sig, c.makeThunk(sig))
	return t.(runtime.Thunk)
}

func (c *Compiler) makeThunk(sig *wasm.FuncType) runtime.Thunk {
	np := len(sig.Params)
	decoders := make([]decoder, np)
	for i, p := range sig.Params {
		decoders[i] = decoderFor(p)
	}
	var encode encoder
	if sig.Arity() == 1 {
		encode = encoderFor(sig.Result)
	}
	fast := fastPath(sig)
	maxDepth := c.maxDepth

	return func(ctx context.Context, entry any, slots []uint64) {
		f := entry.(*Func)

		depth, _ := ctx.Value(depthKey{}).(int)
		if depth >= maxDepth {
			platform.Raise(platform.FaultStackExhaustion, 0)
		}
		ctx = context.WithValue(ctx, depthKey{}, depth+1)

		if fast != nil && !f.withCtx && fast(f.raw, slots) {
			return
		}

		in := make([]reflect.Value, 0, np+1)
		if f.withCtx {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		for i, dec := range decoders {
			in = append(in, dec(slots[i]))
		}
		out := f.fn.Call(in)
		if encode != nil {
			slots[np] = encode(out[0])
		}
	}
}

func decoderFor(t wasm.ValType) decoder {
	switch t {
	case wasm.ValI32:
		return func(bits uint64) reflect.Value { return reflect.ValueOf(int32(uint32(bits))) }
	case wasm.ValI64:
		return func(bits uint64) reflect.Value { return reflect.ValueOf(int64(bits)) }
	case wasm.ValF32:
		return func(bits uint64) reflect.Value { return reflect.ValueOf(math.Float32frombits(uint32(bits))) }
	case wasm.ValF64:
		return func(bits uint64) reflect.Value { return reflect.ValueOf(math.Float64frombits(bits)) }
	}
	panic("jit: no decoder for " + t.String())
}

func encoderFor(t wasm.ValType) encoder {
	switch t {
	case wasm.ValI32:
		return func(v reflect.Value) uint64 { return uint64(uint32(int32(v.Int()))) }
	case wasm.ValI64:
		return func(v reflect.Value) uint64 { return uint64(v.Int()) }
	case wasm.ValF32:
		return func(v reflect.Value) uint64 { return uint64(math.Float32bits(float32(v.Float()))) }
	case wasm.ValF64:
		return func(v reflect.Value) uint64 { return math.Float64bits(v.Float()) }
	}
	panic("jit: no encoder for " + t.String())
}

var (
	sigVoid   = wasm.NewFuncType(nil, wasm.ValNone)
	sigI32    = wasm.NewFuncType([]wasm.ValType{wasm.ValI32}, wasm.ValI32)
	sigI32I32 = wasm.NewFuncType([]wasm.ValType{wasm.ValI32, wasm.ValI32}, wasm.ValI32)
	sigI64I64 = wasm.NewFuncType([]wasm.ValType{wasm.ValI64, wasm.ValI64}, wasm.ValI64)
)

// fastPath returns a direct call for common signatures. It reports false
// when the entry does not have the expected Go type.
func fastPath(sig *wasm.FuncType) func(raw any, slots []uint64) bool {
	switch sig {
	case sigVoid:
		return func(raw any, _ []uint64) bool {
			fn, ok := raw.(func())
			if ok {
				fn()
			}
			return ok
		}
	case sigI32:
		return func(raw any, slots []uint64) bool {
			fn, ok := raw.(func(int32) int32)
			if ok {
				slots[1] = uint64(uint32(fn(int32(uint32(slots[0])))))
			}
			return ok
		}
	case sigI32I32:
		return func(raw any, slots []uint64) bool {
			fn, ok := raw.(func(int32, int32) int32)
			if ok {
				slots[2] = uint64(uint32(fn(int32(uint32(slots[0])), int32(uint32(slots[1])))))
			}
			return ok
		}
	case sigI64I64:
		return func(raw any, slots []uint64) bool {
			fn, ok := raw.(func(int64, int64) int64)
			if ok {
				slots[2] = uint64(fn(int64(slots[0]), int64(slots[1])))
			}
			return ok
		}
	}
	return nil
}
