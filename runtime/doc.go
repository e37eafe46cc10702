// Package runtime is the call boundary between host code and natively
// compiled guest functions.
//
// # Quick Start
//
//	comp := jit.NewCompiler()
//	rt, err := runtime.New(comp)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mod := rt.NewModuleInstance("math")
//	defer mod.Close()
//
//	div, err := comp.Compile(mod, "div", func(a, b int32) int32 { return a / b })
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := rt.InvokeFunction(ctx, div, []wasm.Value{wasm.I32(7), wasm.I32(0)})
//	if errors.Is(err, runtime.ErrIntegerDivideByZeroOrOverflow) {
//	    fmt.Print(err.(*runtime.Exception).StackTrace())
//	}
//
// # Invocation
//
// InvokeFunction checks the arguments against the function's signature,
// copies them into a buffer of 64-bit slots (parameters in order, then
// one result slot if the signature has a result) and runs the code
// generator's invoke thunk for that signature inside a fault capture
// region of the platform.
//
// Faults are attributed as follows:
//
//	Fault                                   Exception cause
//	─────────────────────────────────────────────────────────────────────
//	illegal access inside a table range     undefined-table-element
//	illegal access inside a memory range    access-violation
//	illegal access anywhere else            (logged, process terminates)
//	stack exhaustion                        stack-overflow
//	integer divide fault                    integer-divide-by-zero-or-overflow
//
// Guest code may also abandon a call with Runtime.Throw. Exceptions carry
// the described call stack of the frames inside the call, innermost first.
//
// # Objects
//
// Functions, globals, tables and memories belong to a ModuleInstance and
// share the Object interface; IsA checks a handle against an expected
// wasm.ObjectType. Tables and memories reserve an inaccessible address
// range so that faults inside it can be attributed to them.
//
// Global cells live in a Globals arena. Type and mutability preconditions
// panic unless the module is built with the callgate_release tag.
//
// # Metrics
//
// With WithRegisterer, the runtime exports callgate_invocations_total by
// outcome and callgate_exceptions_total by cause.
package runtime
