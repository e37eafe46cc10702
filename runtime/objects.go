package runtime

import (
	"sync/atomic"

	"github.com/wippyai/wasm-callgate/platform"
	"github.com/wippyai/wasm-callgate/wasm"
)

// Object is a runtime object handle. The set of implementations is
// closed: FunctionInstance, GlobalInstance, TableInstance and
// MemoryInstance.
type Object interface {
	Kind() wasm.ObjectKind
	match(m objectMatcher) bool
}

// objectMatcher dispatches on the concrete object. Adding an object kind
// requires a method here, which every matcher must then implement.
type objectMatcher interface {
	function(f *FunctionInstance) bool
	global(g *GlobalInstance) bool
	table(t *TableInstance) bool
	memory(m *MemoryInstance) bool
}

// FunctionInstance is a compiled guest function. Entry is the opaque
// native entry point handed back to the code generator's invoke thunk.
type FunctionInstance struct {
	typ   *wasm.FuncType
	entry any
	name  string
}

func (f *FunctionInstance) Kind() wasm.ObjectKind      { return wasm.ObjectKindFunction }
func (f *FunctionInstance) match(m objectMatcher) bool { return m.function(f) }

// Type returns the function's signature.
func (f *FunctionInstance) Type() *wasm.FuncType { return f.typ }

// Entry returns the native entry point.
func (f *FunctionInstance) Entry() any { return f.entry }

// Name returns the qualified name, module.export.
func (f *FunctionInstance) Name() string { return f.name }

// GlobalInstance is a typed mutable cell. Use the Globals arena to
// create and access it.
type GlobalInstance struct {
	typ  wasm.GlobalType
	bits atomic.Uint64
}

func (g *GlobalInstance) Kind() wasm.ObjectKind      { return wasm.ObjectKindGlobal }
func (g *GlobalInstance) match(m objectMatcher) bool { return m.global(g) }

// Type returns the global's value type and mutability.
func (g *GlobalInstance) Type() wasm.GlobalType { return g.typ }

// TableInstance owns a reserved address range. Faults inside it are
// reported as undefined table elements.
type TableInstance struct {
	res *platform.Reservation
	typ wasm.TableType
}

func (t *TableInstance) Kind() wasm.ObjectKind      { return wasm.ObjectKindTable }
func (t *TableInstance) match(m objectMatcher) bool { return m.table(t) }

func (t *TableInstance) Type() wasm.TableType { return t.typ }
func (t *TableInstance) Base() uintptr        { return t.res.Base() }
func (t *TableInstance) Size() uintptr        { return t.res.Size() }

// MemoryInstance owns a reserved address range. Faults inside it are
// reported as access violations.
type MemoryInstance struct {
	res *platform.Reservation
	typ wasm.MemoryType
}

func (m *MemoryInstance) Kind() wasm.ObjectKind       { return wasm.ObjectKindMemory }
func (m *MemoryInstance) match(mm objectMatcher) bool { return mm.memory(m) }

func (m *MemoryInstance) Type() wasm.MemoryType { return m.typ }
func (m *MemoryInstance) Base() uintptr         { return m.res.Base() }
func (m *MemoryInstance) Size() uintptr         { return m.res.Size() }
