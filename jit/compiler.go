package jit

import (
	"context"
	"fmt"
	"reflect"
	goruntime "runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-callgate/errors"
	"github.com/wippyai/wasm-callgate/runtime"
	"github.com/wippyai/wasm-callgate/wasm"
)

// DefaultMaxCallDepth bounds nested guest calls made through the runtime.
const DefaultMaxCallDepth = 1024

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

var valTypes = map[reflect.Type]wasm.ValType{
	reflect.TypeOf(int32(0)):   wasm.ValI32,
	reflect.TypeOf(int64(0)):   wasm.ValI64,
	reflect.TypeOf(float32(0)): wasm.ValF32,
	reflect.TypeOf(float64(0)): wasm.ValF64,
}

// Func is the entry point of a compiled function.
type Func struct {
	raw     any
	fn      reflect.Value
	name    string
	entry   uintptr
	withCtx bool
}

// Compiler turns Go functions over wasm number types into guest
// functions. It implements runtime.CodeGenerator.
type Compiler struct {
	entries  map[uintptr]*Func
	thunks   sync.Map // *wasm.FuncType -> runtime.Thunk
	mu       sync.RWMutex
	maxDepth int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMaxCallDepth sets how deeply guest calls may nest before the call
// fails with stack exhaustion.
func WithMaxCallDepth(n int) Option {
	return func(c *Compiler) { c.maxDepth = n }
}

// NewCompiler creates a compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		entries:  make(map[uintptr]*Func),
		maxDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile registers fn as function name of mod. fn must be a func whose
// parameters and at most one result are int32, int64, float32 or
// float64. It may take a context.Context first, which carries the
// runtime executing the call.
func (c *Compiler) Compile(mod *runtime.ModuleInstance, name string, fn any) (*runtime.FunctionInstance, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.Compile(name, fmt.Sprintf("%T is not a function", fn))
	}
	sig, withCtx, err := signatureOf(name, v.Type())
	if err != nil {
		return nil, err
	}

	f := &Func{
		raw:     fn,
		fn:      v,
		name:    mod.Name() + "." + name,
		entry:   v.Pointer(),
		withCtx: withCtx,
	}
	inst, err := mod.NewFunction(name, sig, f)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, ok := c.entries[f.entry]; !ok {
		c.entries[f.entry] = f
	}
	c.mu.Unlock()

	Logger().Debug("compiled",
		zap.String("function", f.name),
		zap.Stringer("signature", sig),
		zap.Uintptr("entry", f.entry))
	return inst, nil
}

func signatureOf(name string, t reflect.Type) (*wasm.FuncType, bool, error) {
	if t.IsVariadic() {
		return nil, false, errors.Compile(name, "variadic functions are not supported")
	}
	if t.NumOut() > 1 {
		return nil, false, errors.Compile(name, "at most one result is supported")
	}

	first := 0
	withCtx := t.NumIn() > 0 && t.In(0) == contextType
	if withCtx {
		first = 1
	}

	params := make([]wasm.ValType, 0, t.NumIn()-first)
	for i := first; i < t.NumIn(); i++ {
		vt, ok := valTypes[t.In(i)]
		if !ok {
			return nil, false, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
				Name(name).
				Value(t.In(i)).
				Detailf("parameter %d is not a wasm number type", i).
				Build()
		}
		params = append(params, vt)
	}

	result := wasm.ValNone
	if t.NumOut() == 1 {
		vt, ok := valTypes[t.Out(0)]
		if !ok {
			return nil, false, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
				Name(name).
				Value(t.Out(0)).
				Detail("result is not a wasm number type").
				Build()
		}
		result = vt
	}
	return wasm.NewFuncType(params, result), withCtx, nil
}

// DescribeAddress describes ip if it lies in a compiled function.
func (c *Compiler) DescribeAddress(ip uintptr) (string, bool) {
	if ip == 0 {
		return "", false
	}
	fn := goruntime.FuncForPC(ip - 1)
	if fn == nil {
		return "", false
	}
	c.mu.RLock()
	f, ok := c.entries[fn.Entry()]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("wasm!%s+%#x", f.name, ip-f.entry), true
}
