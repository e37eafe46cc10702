package engine

import (
	"context"
	stderrors "errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-callgate/errors"
	"github.com/wippyai/wasm-callgate/internal/wasmbin"
	"github.com/wippyai/wasm-callgate/runtime"
	"github.com/wippyai/wasm-callgate/wasm"
)

var (
	i32 = []wasm.ValType{wasm.ValI32}
	i64 = []wasm.ValType{wasm.ValI64}
)

// trapModule exports one function per trap the engine translates.
func trapModule() []byte {
	m := &wasmbin.Module{
		Funcs: []wasmbin.Func{
			{
				Export:  "add",
				Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
				Results: i32,
				Body:    wasmbin.Code(wasmbin.LocalGet(0), wasmbin.LocalGet(1), wasmbin.Op(wasm.OpI32Add)),
			},
			{
				Export:  "load",
				Params:  i32,
				Results: i32,
				Body:    wasmbin.Code(wasmbin.LocalGet(0), wasmbin.I32Load(0)),
			},
			{
				Export:  "div",
				Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
				Results: i32,
				Body:    wasmbin.Code(wasmbin.LocalGet(0), wasmbin.LocalGet(1), wasmbin.Op(wasm.OpI32DivS)),
			},
			{
				Export: "unreachable",
				Body:   wasmbin.Op(wasm.OpUnreachable),
			},
			{
				// Type 3 is the () -> () type of "unreachable".
				Export: "dispatch",
				Params: i32,
				Body:   wasmbin.Code(wasmbin.LocalGet(0), wasmbin.CallIndirect(3)),
			},
			{
				Export:  "trunc",
				Params:  []wasm.ValType{wasm.ValF32},
				Results: i32,
				Body:    wasmbin.Code(wasmbin.LocalGet(0), wasmbin.Op(wasm.OpI32TruncF32S)),
			},
			{
				Export: "recurse",
				Body:   wasmbin.Call(6),
			},
			{
				Export:  "wide",
				Params:  i64,
				Results: i64,
				Body:    wasmbin.LocalGet(0),
			},
			{
				Export:  "pair",
				Results: []wasm.ValType{wasm.ValI32, wasm.ValI32},
				Body:    wasmbin.Code(wasmbin.I32Const(1), wasmbin.I32Const(2)),
			},
		},
		Table:        &wasmbin.Limits{Min: 0},
		Memory:       &wasmbin.Limits{Min: 1, Max: 2, HasMax: true},
		MemoryExport: "memory",
	}
	return m.Encode()
}

func newEngine(t *testing.T, cfg *Config) (*WazeroEngine, *runtime.Runtime) {
	t.Helper()
	ctx := context.Background()
	e, err := NewWazeroEngine(ctx, cfg)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	t.Cleanup(func() { e.Close(ctx) })

	rt, err := runtime.New(e)
	if err != nil {
		t.Fatalf("runtime.New failed: %v", err)
	}
	return e, rt
}

func loadTrapModule(t *testing.T, cfg *Config) (*runtime.Runtime, *Module) {
	t.Helper()
	e, rt := newEngine(t, cfg)
	mod, err := e.LoadModule(context.Background(), rt, "traps", trapModule())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}
	t.Cleanup(func() { mod.Close(context.Background()) })
	return rt, mod
}

func invoke(t *testing.T, rt *runtime.Runtime, mod *Module, name string, args ...wasm.Value) (runtime.Result, error) {
	t.Helper()
	fn, ok := mod.Function(name)
	if !ok {
		t.Fatalf("export %q not found", name)
	}
	return rt.InvokeFunction(context.Background(), fn, args)
}

func TestNewWazeroEngine(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{Interpreter: true}, "interpreter"},
		{&Config{EnableWASI: true}, "wasi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngine(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngine failed: %v", err)
			}
			defer engine.Close(ctx)

			if engine.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
			wasiLoaded := engine.runtime.Module("wasi_snapshot_preview1") != nil
			if want := tc.cfg != nil && tc.cfg.EnableWASI; wasiLoaded != want {
				t.Errorf("WASI instantiated: got %v, want %v", wasiLoaded, want)
			}
		})
	}
}

func TestLoadModule_Exports(t *testing.T) {
	_, mod := loadTrapModule(t, nil)

	want := []string{"add", "dispatch", "div", "load", "recurse", "trunc", "unreachable", "wide"}
	if got := mod.Exports(); !reflect.DeepEqual(got, want) {
		t.Errorf("Exports: got %v, want %v", got, want)
	}
	if _, ok := mod.Function("pair"); ok {
		t.Error("multi-result export should be skipped")
	}

	add, _ := mod.Function("add")
	if want := wasm.NewFuncType([]wasm.ValType{wasm.ValI32, wasm.ValI32}, wasm.ValI32); add.Type() != want {
		t.Errorf("add signature: got %v, want %v", add.Type(), want)
	}
	wide, _ := mod.Function("wide")
	if want := wasm.NewFuncType(i64, wasm.ValI64); wide.Type() != want {
		t.Errorf("wide signature: got %v, want %v", wide.Type(), want)
	}

	if mod.Memory() == nil {
		t.Fatal("memory guard missing")
	}
	if got, want := mod.Memory().Type().Size, (wasm.SizeConstraints{Min: 1, Max: 2}); got != want {
		t.Errorf("memory limits: got %+v, want %+v", got, want)
	}
	if !runtime.IsA(mod.Memory(), wasm.MemoryObject(wasm.MemoryType{Size: wasm.SizeConstraints{Max: 4}})) {
		t.Error("memory should conform to a wider range")
	}
	if mod.Table() == nil || mod.Table().Size() == 0 {
		t.Error("table guard missing")
	}
	if len(mod.Instance().Tables()) != 1 || len(mod.Instance().Memories()) != 1 {
		t.Errorf("reservations: %d tables, %d memories", len(mod.Instance().Tables()), len(mod.Instance().Memories()))
	}
}

func TestLoadModule_Errors(t *testing.T) {
	ctx := context.Background()
	e, rt := newEngine(t, nil)

	t.Run("nil runtime", func(t *testing.T) {
		if _, err := e.LoadModule(ctx, nil, "x", trapModule()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid binary", func(t *testing.T) {
		_, err := e.LoadModule(ctx, rt, "bad", []byte("not wasm"))
		var werr *errors.Error
		if !stderrors.As(err, &werr) {
			t.Fatalf("expected *errors.Error, got %T: %v", err, err)
		}
		if werr.Phase != errors.PhaseLoad {
			t.Errorf("phase: got %v, want %v", werr.Phase, errors.PhaseLoad)
		}
	})

	t.Run("missing imports", func(t *testing.T) {
		bin := (&wasmbin.Module{
			Imports: []wasmbin.Import{
				{Module: "env", Name: "log", Params: i32},
				{Module: "wasi_snapshot_preview1", Name: "proc_exit", Params: i32},
			},
			Funcs: []wasmbin.Func{{Export: "run", Body: wasmbin.Code(wasmbin.I32Const(0), wasmbin.Call(1))}},
		}).Encode()

		_, err := e.LoadModule(ctx, rt, "needy", bin)
		var missing *errors.MissingImportsError
		if !stderrors.As(err, &missing) {
			t.Fatalf("expected *errors.MissingImportsError, got %T: %v", err, err)
		}
		if len(missing.Imports) != 2 {
			t.Fatalf("missing imports: got %d, want 2", len(missing.Imports))
		}
		if missing.Imports[0].Namespace != "env" || missing.Imports[0].Function != "log" {
			t.Errorf("first missing import: got %+v", missing.Imports[0])
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		mod, err := e.LoadModule(ctx, rt, "twice", trapModule())
		if err != nil {
			t.Fatalf("first load: %v", err)
		}
		defer mod.Close(ctx)
		if _, err := e.LoadModule(ctx, rt, "twice", trapModule()); err == nil {
			t.Error("expected instantiation error for a duplicate module name")
		}
	})
}

func TestInvoke_Values(t *testing.T) {
	for _, interp := range []bool{false, true} {
		t.Run(modeName(interp), func(t *testing.T) {
			rt, mod := loadTrapModule(t, &Config{Interpreter: interp})

			res, err := invoke(t, rt, mod, "add", wasm.I32(40), wasm.I32(2))
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if res.Value.AsI32() != 42 {
				t.Errorf("add: got %d, want 42", res.Value.AsI32())
			}

			res, err = invoke(t, rt, mod, "wide", wasm.I64(math.MinInt64))
			if err != nil {
				t.Fatalf("wide: %v", err)
			}
			if res.Value.AsI64() != math.MinInt64 {
				t.Errorf("wide: got %d", res.Value.AsI64())
			}

			res, err = invoke(t, rt, mod, "load", wasm.I32(0))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if res.Value.AsI32() != 0 {
				t.Errorf("load of fresh memory: got %d", res.Value.AsI32())
			}

			if _, err := invoke(t, rt, mod, "add", wasm.I32(1)); !stderrors.Is(err, runtime.ErrInvokeSignatureMismatch) {
				t.Errorf("arity mismatch: got %v", err)
			}
		})
	}
}

func TestInvoke_Traps(t *testing.T) {
	nan := wasm.F32(float32(math.NaN()))
	tests := []struct {
		name string
		fn   string
		args []wasm.Value
		want error
	}{
		{"memory out of bounds", "load", []wasm.Value{wasm.I32(2 * wasm.PageSize)}, runtime.ErrAccessViolation},
		{"divide by zero", "div", []wasm.Value{wasm.I32(1), wasm.I32(0)}, runtime.ErrIntegerDivideByZeroOrOverflow},
		{"divide overflow", "div", []wasm.Value{wasm.I32(math.MinInt32), wasm.I32(-1)}, runtime.ErrIntegerDivideByZeroOrOverflow},
		{"unreachable", "unreachable", nil, runtime.ErrReachedUnreachable},
		{"empty table", "dispatch", []wasm.Value{wasm.I32(0)}, runtime.ErrUndefinedTableElement},
		{"invalid conversion", "trunc", []wasm.Value{nan}, runtime.ErrInvalidFloatOperation},
		// wazero reports this with the same text as signed division overflow.
		{"truncation overflow", "trunc", []wasm.Value{wasm.F32(3e10)}, runtime.ErrIntegerDivideByZeroOrOverflow},
	}

	for _, interp := range []bool{false, true} {
		t.Run(modeName(interp), func(t *testing.T) {
			rt, mod := loadTrapModule(t, &Config{Interpreter: interp})
			for _, tc := range tests {
				t.Run(tc.name, func(t *testing.T) {
					_, err := invoke(t, rt, mod, tc.fn, tc.args...)
					if !stderrors.Is(err, tc.want) {
						t.Fatalf("got %v, want %v", err, tc.want)
					}
					var exc *runtime.Exception
					if !stderrors.As(err, &exc) || len(exc.CallStack) == 0 {
						t.Fatalf("expected exception with a call stack, got %v", err)
					}
					for _, frame := range exc.CallStack {
						if strings.Contains(frame, "TestInvoke_Traps") {
							t.Errorf("caller frame leaked into stack: %v", exc.CallStack)
							break
						}
					}
				})
			}

			// The module stays usable after traps.
			res, err := invoke(t, rt, mod, "add", wasm.I32(1), wasm.I32(1))
			if err != nil || res.Value.AsI32() != 2 {
				t.Errorf("add after traps: %v, %v", res, err)
			}
		})
	}
}

func TestInvoke_StackOverflow(t *testing.T) {
	rt, mod := loadTrapModule(t, &Config{Interpreter: true})
	if _, err := invoke(t, rt, mod, "recurse"); !stderrors.Is(err, runtime.ErrStackOverflow) {
		t.Errorf("got %v, want %v", err, runtime.ErrStackOverflow)
	}
}

func TestInvoke_ProcExit(t *testing.T) {
	ctx := context.Background()
	e, rt := newEngine(t, &Config{EnableWASI: true})

	exitWith := func(name string, code int32) *Module {
		bin := (&wasmbin.Module{
			Imports: []wasmbin.Import{{Module: "wasi_snapshot_preview1", Name: "proc_exit", Params: i32}},
			Funcs:   []wasmbin.Func{{Export: "run", Body: wasmbin.Code(wasmbin.I32Const(code), wasmbin.Call(0))}},
		}).Encode()
		mod, err := e.LoadModule(ctx, rt, name, bin)
		if err != nil {
			t.Fatalf("LoadModule %s: %v", name, err)
		}
		t.Cleanup(func() { mod.Close(ctx) })
		return mod
	}

	if _, err := invoke(t, rt, exitWith("clean", 0), "run"); err != nil {
		t.Errorf("exit 0: got %v", err)
	}
	if _, err := invoke(t, rt, exitWith("failed", 3), "run"); !stderrors.Is(err, runtime.ErrCalledAbort) {
		t.Errorf("exit 3: got %v, want %v", err, runtime.ErrCalledAbort)
	}

	// An export with a result that exits cleanly yields the zero value of
	// its result type.
	bin := (&wasmbin.Module{
		Imports: []wasmbin.Import{{Module: "wasi_snapshot_preview1", Name: "proc_exit", Params: i32}},
		Funcs: []wasmbin.Func{{
			Export:  "answer",
			Results: i32,
			Body:    wasmbin.Code(wasmbin.I32Const(0), wasmbin.Call(0), wasmbin.I32Const(7)),
		}},
	}).Encode()
	mod, err := e.LoadModule(ctx, rt, "answer", bin)
	if err != nil {
		t.Fatalf("LoadModule answer: %v", err)
	}
	t.Cleanup(func() { mod.Close(ctx) })
	res, err := invoke(t, rt, mod, "answer")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Value.Type != wasm.ValI32 || res.Value.AsI32() != 0 {
		t.Errorf("answer after exit 0: got %v, want i32:0", res)
	}
}

func TestInvoke_Concurrent(t *testing.T) {
	rt, mod := loadTrapModule(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8*100)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int32) {
			defer wg.Done()
			for i := int32(0); i < 100; i++ {
				if i%3 == 0 {
					_, err := invoke(t, rt, mod, "div", wasm.I32(g), wasm.I32(0))
					if !stderrors.Is(err, runtime.ErrIntegerDivideByZeroOrOverflow) {
						errs <- err
					}
					continue
				}
				res, err := invoke(t, rt, mod, "add", wasm.I32(g), wasm.I32(i))
				if err != nil || res.Value.AsI32() != g+i {
					errs <- err
				}
			}
		}(int32(g))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected outcome: %v", err)
	}
}

func TestLoadModule_WithoutMemory(t *testing.T) {
	ctx := context.Background()
	e, rt := newEngine(t, nil)
	bin := (&wasmbin.Module{
		Funcs: []wasmbin.Func{{Export: "nop"}},
	}).Encode()

	mod, err := e.LoadModule(ctx, rt, "bare", bin)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	defer mod.Close(ctx)

	if mod.Memory() != nil {
		t.Error("module without memory has a memory reservation")
	}
	if data, ok := mod.ReadMemory(0, 1); ok {
		t.Errorf("ReadMemory without memory: got %v", data)
	}
	res, err := invoke(t, rt, mod, "nop")
	if err != nil || !res.Empty() {
		t.Errorf("nop: %v, %v", res, err)
	}
}

func TestReadMemory(t *testing.T) {
	_, mod := loadTrapModule(t, nil)
	data, ok := mod.ReadMemory(0, 4)
	if !ok || len(data) != 4 {
		t.Fatalf("ReadMemory: %v, %v", data, ok)
	}
	if _, ok := mod.ReadMemory(2*wasm.PageSize, 1); ok {
		t.Error("read past memory end should fail")
	}
}

func TestDescribeAddress(t *testing.T) {
	e, _ := newEngine(t, nil)

	if _, ok := e.DescribeAddress(0); ok {
		t.Error("zero address should not be described")
	}
	own := reflect.ValueOf(TestDescribeAddress).Pointer()
	if _, ok := e.DescribeAddress(own + 1); ok {
		t.Error("non-wazero frame should be left to the platform")
	}
	pc := reflect.ValueOf(wazero.NewRuntime).Pointer()
	desc, ok := e.DescribeAddress(pc + 1)
	if !ok || desc != "wazero!NewRuntime" {
		t.Errorf("wazero frame: got %q, %v", desc, ok)
	}
}

func TestWasmStack(t *testing.T) {
	msg := "wasm error: unreachable\nwasm stack trace:\n\ttraps.unreachable()\n\ttraps.main()"
	got := wasmStack(msg)
	want := []string{"traps.unreachable()", "traps.main()"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if wasmStack("plain error") != nil {
		t.Error("expected no frames")
	}
}

func modeName(interp bool) string {
	if interp {
		return "interpreter"
	}
	return "compiler"
}
