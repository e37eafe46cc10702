// Package jit is a code generator that uses Go functions as guest code.
//
// Compile accepts any func over int32, int64, float32 and float64 with at
// most one result, optionally taking a context.Context first:
//
//	comp := jit.NewCompiler()
//	rt, _ := runtime.New(comp)
//	mod := rt.NewModuleInstance("math")
//
//	add, _ := comp.Compile(mod, "add", func(a, b int32) int32 { return a + b })
//	res, _ := rt.InvokeFunction(ctx, add, []wasm.Value{wasm.I32(1), wasm.I32(2)})
//
// Faults raised by compiled functions (nil or protected memory access,
// integer division by zero) are captured by the runtime like those of
// any other generated code. Intrinsics cover the traps Go does not raise
// on its own: DivS32/DivS64 for signed division overflow, Unreachable and
// Abort for explicit guest traps. Guest calls nested through the runtime
// fail with stack exhaustion beyond WithMaxCallDepth.
//
// Stack frames inside compiled functions are described as
// wasm!<module>.<name>+<offset>.
package jit
