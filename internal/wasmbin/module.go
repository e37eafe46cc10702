// Package wasmbin assembles small WebAssembly core modules. It covers the
// sections needed to exercise invocation and traps: types, function
// imports, functions, one table, one memory, exports and code.
package wasmbin

import (
	"github.com/wippyai/wasm-callgate/wasm"
)

// Import is an imported function.
type Import struct {
	Module  string
	Name    string
	Params  []wasm.ValType
	Results []wasm.ValType
}

// Func is a function defined by the module. Body holds its instructions
// without the trailing end opcode. A non-empty Export exports it.
type Func struct {
	Export  string
	Params  []wasm.ValType
	Results []wasm.ValType
	Locals  []wasm.ValType
	Body    []byte
}

// Limits are table or memory size limits. Max is ignored unless HasMax.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Module describes a core module. Function indices count imports first.
type Module struct {
	Imports []Import
	Funcs   []Func
	// Table is a funcref table with no elements.
	Table  *Limits
	Memory *Limits
	// MemoryExport exports the memory under this name when set.
	MemoryExport string
}

// Encode returns the module's binary encoding.
func (m *Module) Encode() []byte {
	var w Writer
	w.Byte(0x00, 0x61, 0x73, 0x6d)
	w.Byte(byte(wasm.Version), 0x00, 0x00, 0x00)

	nimp := len(m.Imports)
	w.Section(wasm.SectionType, func(s *Writer) {
		s.U32(uint32(nimp + len(m.Funcs)))
		for _, imp := range m.Imports {
			funcType(s, imp.Params, imp.Results)
		}
		for _, f := range m.Funcs {
			funcType(s, f.Params, f.Results)
		}
	})

	if nimp > 0 {
		w.Section(wasm.SectionImport, func(s *Writer) {
			s.U32(uint32(nimp))
			for i, imp := range m.Imports {
				s.Name(imp.Module)
				s.Name(imp.Name)
				s.Byte(wasm.KindFunc)
				s.U32(uint32(i))
			}
		})
	}

	w.Section(wasm.SectionFunction, func(s *Writer) {
		s.U32(uint32(len(m.Funcs)))
		for i := range m.Funcs {
			s.U32(uint32(nimp + i))
		}
	})

	if m.Table != nil {
		w.Section(wasm.SectionTable, func(s *Writer) {
			s.U32(1)
			s.Byte(byte(wasm.ValFuncRef))
			limits(s, *m.Table)
		})
	}

	if m.Memory != nil {
		w.Section(wasm.SectionMemory, func(s *Writer) {
			s.U32(1)
			limits(s, *m.Memory)
		})
	}

	w.Section(wasm.SectionExport, func(s *Writer) {
		var n uint32
		for _, f := range m.Funcs {
			if f.Export != "" {
				n++
			}
		}
		if m.Memory != nil && m.MemoryExport != "" {
			n++
		}
		s.U32(n)
		for i, f := range m.Funcs {
			if f.Export == "" {
				continue
			}
			s.Name(f.Export)
			s.Byte(wasm.KindFunc)
			s.U32(uint32(nimp + i))
		}
		if m.Memory != nil && m.MemoryExport != "" {
			s.Name(m.MemoryExport)
			s.Byte(wasm.KindMemory)
			s.U32(0)
		}
	})

	w.Section(wasm.SectionCode, func(s *Writer) {
		s.U32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body Writer
			body.U32(uint32(len(f.Locals)))
			for _, l := range f.Locals {
				body.U32(1)
				body.Byte(byte(l))
			}
			body.Byte(f.Body...)
			body.Byte(wasm.OpEnd)

			s.U32(uint32(body.Len()))
			s.Byte(body.Bytes()...)
		}
	})

	return w.Bytes()
}

func funcType(w *Writer, params, results []wasm.ValType) {
	w.Byte(wasm.FuncTypeByte)
	w.U32(uint32(len(params)))
	for _, p := range params {
		w.Byte(byte(p))
	}
	w.U32(uint32(len(results)))
	for _, r := range results {
		w.Byte(byte(r))
	}
}

func limits(w *Writer, l Limits) {
	if l.HasMax {
		w.Byte(0x01)
		w.U32(l.Min)
		w.U32(l.Max)
		return
	}
	w.Byte(0x00)
	w.U32(l.Min)
}
