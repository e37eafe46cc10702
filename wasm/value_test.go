package wasm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_Constructors(t *testing.T) {
	assert.Equal(t, uint64(0xfffffff9), I32(-7).Bits)
	assert.Equal(t, int32(-7), I32(-7).AsI32())
	assert.Equal(t, int64(math.MinInt64), I64(math.MinInt64).AsI64())
	assert.Equal(t, float32(1.5), F32(1.5).AsF32())
	assert.Equal(t, uint64(math.Float32bits(1.5)), F32(1.5).Bits)
	assert.Equal(t, -2.25, F64(-2.25).AsF64())
	assert.Equal(t, uint64(0xdead), FuncRef(0xdead).AsRef())
	assert.Equal(t, uint64(0xbeef), ExternRef(0xbeef).AsRef())
}

func TestValue_WrongTagPanics(t *testing.T) {
	assert.Panics(t, func() { I32(1).AsI64() })
	assert.Panics(t, func() { I64(1).AsI32() })
	assert.Panics(t, func() { F32(1).AsF64() })
	assert.Panics(t, func() { F64(1).AsF32() })
	assert.Panics(t, func() { I32(1).AsRef() })
}

func TestFromBits_TruncatesNarrowTypes(t *testing.T) {
	v := FromBits(ValI32, 0xffffffff_00000005)
	assert.Equal(t, uint64(5), v.Bits)
	assert.Equal(t, int32(5), v.AsI32())

	w := FromBits(ValI64, 0xffffffff_00000005)
	assert.Equal(t, uint64(0xffffffff_00000005), w.Bits)
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "i32:-3", I32(-3).String())
	assert.Equal(t, "i64:9", I64(9).String())
	assert.Equal(t, "f64:0.5", F64(0.5).String())
	assert.Equal(t, "funcref:0x10", FuncRef(16).String())
}
