package runtime

import "github.com/wippyai/wasm-callgate/wasm"

// IsA reports whether obj satisfies want. Kinds must agree; then
// functions need an equal signature, globals an equal type, and tables
// and memories a size range inside the expected one (tables also an equal
// element type). Nil handles, typed or not, satisfy nothing.
func IsA(obj Object, want wasm.ObjectType) bool {
	if obj == nil || obj.Kind() != want.Kind {
		return false
	}
	return obj.match(conformance{want: want})
}

type conformance struct {
	want wasm.ObjectType
}

func (c conformance) function(f *FunctionInstance) bool {
	return f != nil && f.typ.Equal(c.want.Func)
}

func (c conformance) global(g *GlobalInstance) bool {
	return g != nil && g.typ == c.want.Global
}

func (c conformance) table(t *TableInstance) bool {
	return t != nil && t.typ.ElemType == c.want.Table.ElemType &&
		wasm.IsSubset(c.want.Table.Size, t.typ.Size)
}

func (c conformance) memory(m *MemoryInstance) bool {
	return m != nil && wasm.IsSubset(c.want.Memory.Size, m.typ.Size)
}
