package wasmbin

import (
	"bytes"

	"github.com/jcalabro/leb128"
)

// Writer provides buffered writing utilities for WASM binary encoding.
type Writer struct {
	buf bytes.Buffer
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes raw bytes.
func (w *Writer) Byte(b ...byte) {
	w.buf.Write(b)
}

// U32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) U32(v uint32) {
	w.buf.Write(leb128.EncodeU64(uint64(v)))
}

// S32 writes a signed LEB128 encoded int32.
func (w *Writer) S32(v int32) {
	w.buf.Write(leb128.EncodeS64(int64(v)))
}

// S64 writes a signed LEB128 encoded int64.
func (w *Writer) S64(v int64) {
	w.buf.Write(leb128.EncodeS64(v))
}

// Name writes a length-prefixed UTF-8 name.
func (w *Writer) Name(s string) {
	w.U32(uint32(len(s)))
	w.buf.WriteString(s)
}

// Section writes a section with the given id. body fills its contents.
func (w *Writer) Section(id byte, body func(*Writer)) {
	var sec Writer
	body(&sec)
	w.Byte(id)
	w.U32(uint32(sec.Len()))
	w.buf.Write(sec.Bytes())
}
