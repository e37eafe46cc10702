// Package wasmcallgate is the trusted call boundary of a WebAssembly
// engine: the place where host code enters natively compiled guest code
// and where hardware faults raised by that code come back as typed
// exceptions.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmcallgate/
//	├── wasm/              Value types, function signatures, packed values
//	├── platform/          Fault capture, stack walking, address reservations
//	├── runtime/           Module instances, InvokeFunction, exceptions, globals
//	├── jit/               Go function code generator for tests and host intrinsics
//	├── engine/            wazero-backed code generator for real wasm binaries
//	├── errors/            Structured error types for debugging
//	├── internal/wasmbin/  Minimal wasm binary writer used by tests
//	└── cmd/wasm-invoke/   CLI that lists and invokes module exports
//
// # Quick Start
//
// Load a module and call an export:
//
//	eng, err := engine.NewWazeroEngine(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	rt, err := runtime.New(eng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mod, err := eng.LoadModule(ctx, rt, "main", wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mod.Close(ctx)
//
//	fn, _ := mod.Function("add")
//	res, err := rt.InvokeFunction(ctx, fn, []wasm.Value{wasm.I32(40), wasm.I32(2)})
//	var exc *runtime.Exception
//	if errors.As(err, &exc) {
//	    fmt.Print(exc.StackTrace())
//	}
//
// # Faults
//
// Guest code never returns an error for a trap. Traps either surface as a
// *runtime.Exception carrying a cause and a described call stack, or, when
// a fault cannot be attributed to any reserved table or memory range, the
// process terminates.
//
// # Thread Safety
//
// Runtime, ModuleInstance, FunctionInstance and Globals are safe for
// concurrent use. Global reads and writes are individually atomic with no
// ordering between cells.
package wasmcallgate
