package runtime

import (
	"fmt"
	"sync"

	"github.com/wippyai/wasm-callgate/wasm"
)

// GlobalHandle is a stable reference to a global cell in a Globals arena.
// The zero handle is invalid.
type GlobalHandle uint32

// Globals owns the global cells of one module instance. Cells live until
// the arena is closed; handles are never reused.
type Globals struct {
	cells  []*GlobalInstance
	mu     sync.RWMutex
	closed bool
}

// NewGlobals creates an empty arena.
func NewGlobals() *Globals {
	return &Globals{cells: make([]*GlobalInstance, 0, 16)}
}

// Create allocates a cell of type t holding v. v must have t's value type.
func (a *Globals) Create(t wasm.GlobalType, v wasm.Value) GlobalHandle {
	if assertions && v.Type != t.ValType {
		panic(fmt.Sprintf("global: initial value %s does not match %s", v, t))
	}

	g := &GlobalInstance{typ: t}
	g.bits.Store(v.Bits)

	a.mu.Lock()
	defer a.mu.Unlock()
	if assertions && a.closed {
		panic("global: create in closed arena")
	}
	a.cells = append(a.cells, g)
	return GlobalHandle(len(a.cells))
}

// Object returns the cell behind h, or nil if h is invalid.
func (a *Globals) Object(h GlobalHandle) *GlobalInstance {
	if h == 0 {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(h) > len(a.cells) {
		return nil
	}
	return a.cells[h-1]
}

// Get returns the current value of the cell.
func (a *Globals) Get(h GlobalHandle) wasm.Value {
	g := a.mustObject(h)
	return wasm.FromBits(g.typ.ValType, g.bits.Load())
}

// Set stores v and returns the previous value. The global must be
// mutable and v must have its value type.
func (a *Globals) Set(h GlobalHandle, v wasm.Value) wasm.Value {
	g := a.mustObject(h)
	if assertions {
		if v.Type != g.typ.ValType {
			panic(fmt.Sprintf("global: set %s on %s", v, g.typ))
		}
		if !g.typ.Mutable {
			panic(fmt.Sprintf("global: set on immutable %s", g.typ))
		}
	}
	old := g.bits.Swap(v.Bits)
	return wasm.FromBits(g.typ.ValType, old)
}

// Len returns the number of cells.
func (a *Globals) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cells)
}

// Close destroys every cell. Handles become invalid.
func (a *Globals) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cells = nil
	a.closed = true
}

func (a *Globals) mustObject(h GlobalHandle) *GlobalInstance {
	g := a.Object(h)
	if g == nil {
		panic(fmt.Sprintf("global: invalid handle %d", h))
	}
	return g
}
