package runtime

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-callgate/errors"
	"github.com/wippyai/wasm-callgate/platform"
	"github.com/wippyai/wasm-callgate/runtime/internal/region"
	"github.com/wippyai/wasm-callgate/wasm"
)

// tableElemSize is the reserved size of one table element.
const tableElemSize = 8

// ModuleInstance owns the objects of one instantiated module: functions,
// globals, tables and memories. Close releases all of them.
type ModuleInstance struct {
	rt        *Runtime
	globals   *Globals
	functions map[string]*FunctionInstance
	name      string
	tables    []*TableInstance
	memories  []*MemoryInstance
	mu        sync.RWMutex
	closed    bool
}

// NewModuleInstance creates an empty module instance.
func (r *Runtime) NewModuleInstance(name string) *ModuleInstance {
	return &ModuleInstance{
		rt:        r,
		name:      name,
		globals:   NewGlobals(),
		functions: make(map[string]*FunctionInstance),
	}
}

// Name returns the module name.
func (m *ModuleInstance) Name() string { return m.name }

// Runtime returns the runtime the module belongs to.
func (m *ModuleInstance) Runtime() *Runtime { return m.rt }

// NewFunction registers a function under name. entry is passed to the
// code generator's invoke thunk unchanged.
func (m *ModuleInstance) NewFunction(name string, sig *wasm.FuncType, entry any) (*FunctionInstance, error) {
	if sig == nil {
		return nil, errors.InvalidInput(errors.PhaseInstantiate, "nil signature for "+name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.Closed(errors.PhaseInstantiate, "module "+m.name)
	}
	if _, dup := m.functions[name]; dup {
		return nil, errors.New(errors.PhaseInstantiate, errors.KindInvalidInput).
			Name(m.name + "." + name).
			Detail("duplicate function").
			Build()
	}
	// Re-intern so structurally equal signatures share one descriptor.
	fn := &FunctionInstance{
		name:  m.name + "." + name,
		typ:   wasm.NewFuncType(sig.Params, sig.Result),
		entry: entry,
	}
	m.functions[name] = fn
	return fn, nil
}

// Function looks up a function by its unqualified name.
func (m *ModuleInstance) Function(name string) (*FunctionInstance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.functions[name]
	return fn, ok
}

// Functions returns the module's function names, sorted.
func (m *ModuleInstance) Functions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.functions))
	for name := range m.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTable creates a table and reserves its address range.
func (m *ModuleInstance) NewTable(t wasm.TableType) (*TableInstance, error) {
	res, err := m.reserve(tableReservation(t, m.rt.cfg.TableReservation), region.OwnerTable)
	if err != nil {
		return nil, err
	}
	tbl := &TableInstance{typ: t, res: res}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = m.rt.unreserve(res)
		return nil, errors.Closed(errors.PhaseInstantiate, "module "+m.name)
	}
	m.tables = append(m.tables, tbl)
	return tbl, nil
}

// NewMemory creates a memory and reserves its address range.
func (m *ModuleInstance) NewMemory(t wasm.MemoryType) (*MemoryInstance, error) {
	res, err := m.reserve(memoryReservation(t, m.rt.cfg.MemoryReservation), region.OwnerMemory)
	if err != nil {
		return nil, err
	}
	mem := &MemoryInstance{typ: t, res: res}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		_ = m.rt.unreserve(res)
		return nil, errors.Closed(errors.PhaseInstantiate, "module "+m.name)
	}
	m.memories = append(m.memories, mem)
	return mem, nil
}

// Tables returns the module's tables in creation order.
func (m *ModuleInstance) Tables() []*TableInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*TableInstance(nil), m.tables...)
}

// Memories returns the module's memories in creation order.
func (m *ModuleInstance) Memories() []*MemoryInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*MemoryInstance(nil), m.memories...)
}

// Globals returns the module's global arena.
func (m *ModuleInstance) Globals() *Globals { return m.globals }

// CreateGlobal creates a global cell owned by the module.
func (m *ModuleInstance) CreateGlobal(t wasm.GlobalType, v wasm.Value) GlobalHandle {
	return m.globals.Create(t, v)
}

// GlobalValue returns the current value of a global.
func (m *ModuleInstance) GlobalValue(h GlobalHandle) wasm.Value {
	return m.globals.Get(h)
}

// SetGlobalValue replaces the value of a mutable global and returns the
// previous one.
func (m *ModuleInstance) SetGlobalValue(h GlobalHandle, v wasm.Value) wasm.Value {
	return m.globals.Set(h, v)
}

// Close releases the module's reservations and destroys its globals.
func (m *ModuleInstance) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	tables, memories := m.tables, m.memories
	m.tables, m.memories = nil, nil
	m.mu.Unlock()

	var first error
	for _, t := range tables {
		if err := m.rt.unreserve(t.res); err != nil && first == nil {
			first = err
		}
	}
	for _, mem := range memories {
		if err := m.rt.unreserve(mem.res); err != nil && first == nil {
			first = err
		}
	}
	m.globals.Close()
	m.rt.logger.Debug("module closed", zap.String("module", m.name))
	return first
}

func (m *ModuleInstance) reserve(size uintptr, owner region.Owner) (*platform.Reservation, error) {
	res, err := platform.Reserve(size)
	if err != nil {
		return nil, errors.Allocation(uint64(size), err)
	}
	if err := m.rt.regions.Add(res.Base(), res.Size(), owner); err != nil {
		_ = res.Release()
		return nil, errors.Overlap(err)
	}
	m.rt.logger.Debug("range reserved",
		zap.String("module", m.name),
		zap.Stringer("owner", owner),
		zap.Uintptr("base", res.Base()),
		zap.Uintptr("size", res.Size()))
	return res, nil
}

func (r *Runtime) unreserve(res *platform.Reservation) error {
	r.regions.Remove(res.Base())
	return res.Release()
}

func tableReservation(t wasm.TableType, fallback uintptr) uintptr {
	return boundedSize(t.Size.Max, tableElemSize, fallback)
}

func memoryReservation(t wasm.MemoryType, fallback uintptr) uintptr {
	return boundedSize(t.Size.Max, wasm.PageSize, fallback)
}

// boundedSize returns limit*unit bytes, or fallback when limit is
// unbounded or the product does not fit a reservation.
func boundedSize(limit, unit uint64, fallback uintptr) uintptr {
	if limit == wasm.Unbounded || limit > maxReservation/unit {
		return fallback
	}
	if limit == 0 {
		return uintptr(unit)
	}
	return uintptr(limit * unit)
}
