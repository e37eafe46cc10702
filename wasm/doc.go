// Package wasm defines the value and type model shared by the call
// boundary: value types with their binary encodings, tagged values,
// interned function signatures, global/table/memory types and the
// object type variant used for conformance checks.
//
// # Values
//
// A Value pairs a ValType with a raw 64-bit payload, which is exactly
// what travels through an invocation slot:
//
//	v := wasm.I32(-7)
//	v.Bits    // 0x00000000fffffff9
//	v.AsI32() // -7
//	v.AsI64() // panics: i32 value read as i64
//
// # Signatures
//
// NewFuncType interns signatures, so structurally equal signatures
// share one pointer:
//
//	a := wasm.NewFuncType([]wasm.ValType{wasm.ValI32}, wasm.ValI64)
//	b := wasm.NewFuncType([]wasm.ValType{wasm.ValI32}, wasm.ValI64)
//	a == b // true
//
// Signatures declare at most one result; ValNone marks its absence.
//
// # Size constraints
//
// Tables and memories carry a [Min, Max] range. A table or memory
// conforms to an expected type when its range fits inside the expected
// one (IsSubset). Unbounded marks a missing maximum.
package wasm
