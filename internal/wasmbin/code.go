package wasmbin

import "github.com/wippyai/wasm-callgate/wasm"

// Code concatenates instruction sequences.
func Code(parts ...[]byte) []byte {
	var w Writer
	for _, p := range parts {
		w.Byte(p...)
	}
	return w.Bytes()
}

// Op is a single opcode without immediates.
func Op(op byte) []byte { return []byte{op} }

func LocalGet(i uint32) []byte { return withU32(wasm.OpLocalGet, i) }
func Call(fn uint32) []byte    { return withU32(wasm.OpCall, fn) }

func I32Const(v int32) []byte {
	var w Writer
	w.Byte(wasm.OpI32Const)
	w.S32(v)
	return w.Bytes()
}

// I32Load loads with natural alignment at the given static offset.
func I32Load(offset uint32) []byte {
	var w Writer
	w.Byte(wasm.OpI32Load)
	w.U32(2)
	w.U32(offset)
	return w.Bytes()
}

// CallIndirect calls through table 0 with the given type index.
func CallIndirect(typeIdx uint32) []byte {
	var w Writer
	w.Byte(wasm.OpCallIndirect)
	w.U32(typeIdx)
	w.U32(0)
	return w.Bytes()
}

func withU32(op byte, v uint32) []byte {
	var w Writer
	w.Byte(op)
	w.U32(v)
	return w.Bytes()
}
