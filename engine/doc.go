// Package engine runs WebAssembly binaries through the call boundary
// using wazero as the code generator.
//
// A WazeroEngine is passed to runtime.New as the CodeGenerator, then
// loads modules into that runtime:
//
//	eng, err := engine.NewWazeroEngine(ctx, &engine.Config{EnableWASI: true})
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
//	rt, err := runtime.New(eng)
//	if err != nil {
//	    return err
//	}
//	mod, err := eng.LoadModule(ctx, rt, "math", wasmBytes)
//	if err != nil {
//	    return err
//	}
//	add, _ := mod.Function("add")
//	res, err := rt.InvokeFunction(ctx, add, []wasm.Value{wasm.I32(2), wasm.I32(3)})
//
// Every export with at most one result becomes a runtime.FunctionInstance
// whose signature is converted from the wazero definition. Exports with
// several results are skipped.
//
// # Traps
//
// wazero reports traps as errors after unwinding the guest. The engine's
// thunk converts them so the runtime attributes them like native faults:
//
//	wazero trap                      Delivered as
//	───────────────────────────────────────────────────────────────────
//	out of bounds memory access      illegal access at the memory guard
//	invalid table access             illegal access at the table guard
//	integer divide by zero/overflow  integer divide fault
//	stack overflow                   stack exhaustion fault
//	unreachable                      thrown reached-unreachable
//	indirect call type mismatch      thrown indirect-call-signature-mismatch
//	invalid conversion to integer    thrown invalid-float-operation
//	proc_exit with non-zero status   thrown called-abort
//	anything else                    thrown called-abort
//
// Float to integer truncation overflow carries the same "integer
// overflow" text as signed division overflow, so it is delivered as an
// integer divide fault; only NaN inputs become invalid-float-operation.
// proc_exit with status 0 completes the call; an export with a result
// then returns the zero value of its result type.
//
// The guards are inaccessible reservations made through the module
// instance: one for the module's imported or exported memory, if any,
// and one standing in for
// its function table, which wazero does not expose.
//
// # Thread Safety
//
// WazeroEngine and Module are safe for concurrent use. Each call takes
// its own wazero function handle from a per-export pool.
package engine
