// Package errors provides structured error types for failures that happen
// outside a guest call: loading, compiling and instantiating modules,
// reserving address space and configuring the runtime.
//
// Guest-level failures are not reported here; those surface as
// *runtime.Exception values carrying a cause and an attributed call stack.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
//		Name("math.add").
//		Value(argType).
//		Detail("parameter %d is not a wasm number type", i).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseInvoke, "export", "add")
//	err := errors.Load("compile module", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
