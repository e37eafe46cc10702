package wasm

import (
	"fmt"
	"math"
)

// Value is a typed 64-bit payload. Bits holds the raw slot encoding: i32
// and f32 occupy the low 32 bits, references carry an opaque address.
// The payload may only be interpreted through Type.
type Value struct {
	Bits uint64
	Type ValType
}

// I32 returns an i32 value. The payload is zero-extended.
func I32(v int32) Value { return Value{Type: ValI32, Bits: uint64(uint32(v))} }

// I64 returns an i64 value.
func I64(v int64) Value { return Value{Type: ValI64, Bits: uint64(v)} }

// F32 returns an f32 value.
func F32(v float32) Value { return Value{Type: ValF32, Bits: uint64(math.Float32bits(v))} }

// F64 returns an f64 value.
func F64(v float64) Value { return Value{Type: ValF64, Bits: math.Float64bits(v)} }

// FuncRef returns a function reference value.
func FuncRef(addr uint64) Value { return Value{Type: ValFuncRef, Bits: addr} }

// ExternRef returns an external reference value.
func ExternRef(addr uint64) Value { return Value{Type: ValExtern, Bits: addr} }

// FromBits reinterprets a raw slot as a value of type t.
func FromBits(t ValType, bits uint64) Value {
	if t == ValI32 || t == ValF32 {
		bits = uint64(uint32(bits))
	}
	return Value{Type: t, Bits: bits}
}

func (v Value) AsI32() int32 {
	v.must(ValI32)
	return int32(uint32(v.Bits))
}

func (v Value) AsI64() int64 {
	v.must(ValI64)
	return int64(v.Bits)
}

func (v Value) AsF32() float32 {
	v.must(ValF32)
	return math.Float32frombits(uint32(v.Bits))
}

func (v Value) AsF64() float64 {
	v.must(ValF64)
	return math.Float64frombits(v.Bits)
}

// AsRef returns the reference payload of a funcref or externref.
func (v Value) AsRef() uint64 {
	if v.Type != ValFuncRef && v.Type != ValExtern {
		panic(fmt.Sprintf("wasm: %s value read as reference", v.Type))
	}
	return v.Bits
}

func (v Value) must(t ValType) {
	if v.Type != t {
		panic(fmt.Sprintf("wasm: %s value read as %s", v.Type, t))
	}
}

func (v Value) String() string {
	switch v.Type {
	case ValI32:
		return fmt.Sprintf("i32:%d", v.AsI32())
	case ValI64:
		return fmt.Sprintf("i64:%d", v.AsI64())
	case ValF32:
		return fmt.Sprintf("f32:%g", v.AsF32())
	case ValF64:
		return fmt.Sprintf("f64:%g", v.AsF64())
	case ValFuncRef, ValExtern:
		return fmt.Sprintf("%s:%#x", v.Type, v.Bits)
	case ValNone:
		return "none"
	default:
		return fmt.Sprintf("%s:%#x", v.Type, v.Bits)
	}
}
