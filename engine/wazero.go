package engine

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-callgate/errors"
	"github.com/wippyai/wasm-callgate/runtime"
	"github.com/wippyai/wasm-callgate/wasm"
)

// WazeroEngine is a code generator backed by wazero. Modules it loads are
// invoked through runtime.InvokeFunction like any other generated code.
type WazeroEngine struct {
	runtime wazero.Runtime
	thunks  sync.Map // *wasm.FuncType -> runtime.Thunk
	cfg     Config
}

var _ runtime.CodeGenerator = (*WazeroEngine)(nil)

// Config holds configuration for engine creation
type Config struct {
	// Stdout and Stderr receive WASI output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// Interpreter selects wazero's interpreter instead of its compiler.
	Interpreter bool

	// EnableWASI makes WASI preview1 imports available to loaded modules.
	EnableWASI bool
}

// NewWazeroEngine creates a new wazero-based engine. A nil cfg uses
// defaults.
func NewWazeroEngine(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.Interpreter {
		runtimeCfg = wazero.NewRuntimeConfigInterpreter()
	}
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	e := &WazeroEngine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cfg:     *cfg,
	}
	if cfg.EnableWASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, errors.Wrap(errors.PhaseInstantiate, errors.KindInstantiation, err, "instantiate WASI")
		}
	}
	Logger().Debug("engine created",
		zap.Bool("interpreter", cfg.Interpreter),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages),
		zap.Bool("wasi", cfg.EnableWASI))
	return e, nil
}

// Close releases every module the engine loaded.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// LoadModule compiles and instantiates bin under name and exposes its
// exports through a module instance of rt. rt must use e as its code
// generator.
func (e *WazeroEngine) LoadModule(ctx context.Context, rt *runtime.Runtime, name string, bin []byte) (*Module, error) {
	if rt == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil runtime")
	}

	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Load("compile "+name, err)
	}
	if missing := e.missingImports(compiled); len(missing) > 0 {
		_ = compiled.Close(ctx)
		return nil, errors.NewMissingImportsError(missing)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize")
	if e.cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(e.cfg.Stdout)
	}
	if e.cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(e.cfg.Stderr)
	}

	instance, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.Instantiation(name, err)
	}

	m := &Module{
		compiled: compiled,
		module:   instance,
		instance: rt.NewModuleInstance(name),
	}
	if err := m.bind(); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}
	Logger().Debug("module loaded",
		zap.String("module", name),
		zap.Int("functions", len(m.instance.Functions())),
		zap.Bool("memory", m.memory != nil))
	return m, nil
}

// missingImports returns "module#name" for every import no instantiated
// module can provide.
func (e *WazeroEngine) missingImports(compiled wazero.CompiledModule) []string {
	var missing []string
	check := func(def interface{ Import() (string, string, bool) }) {
		mod, name, ok := def.Import()
		if ok && e.runtime.Module(mod) == nil {
			missing = append(missing, mod+"#"+name)
		}
	}
	for _, def := range compiled.ImportedFunctions() {
		check(def)
	}
	for _, def := range compiled.ImportedMemories() {
		check(def)
	}
	sort.Strings(missing)
	return missing
}

// Module is a module loaded by a WazeroEngine.
type Module struct {
	compiled wazero.CompiledModule
	module   api.Module
	linear   api.Memory
	instance *runtime.ModuleInstance
	memory   *runtime.MemoryInstance
	table    *runtime.TableInstance
}

// bind creates the guard reservations and one function per export.
func (m *Module) bind() error {
	if def := memoryDefinition(m.compiled); def != nil {
		m.linear = m.module.Memory()
		size := wasm.SizeConstraints{Min: uint64(def.Min()), Max: wasm.Unbounded}
		if hi, ok := def.Max(); ok {
			size.Max = uint64(hi)
		}
		inst, err := m.instance.NewMemory(wasm.MemoryType{Size: size})
		if err != nil {
			return err
		}
		m.memory = inst
	}

	// wazero does not expose the function table; the guard stands in for
	// it when attributing table traps.
	tbl, err := m.instance.NewTable(wasm.TableType{
		ElemType: wasm.ValFuncRef,
		Size:     wasm.SizeConstraints{Max: wasm.Unbounded},
	})
	if err != nil {
		return err
	}
	m.table = tbl

	for name, def := range m.compiled.ExportedFunctions() {
		sig, ok := signatureOf(def)
		if !ok {
			Logger().Debug("export skipped",
				zap.String("module", m.instance.Name()),
				zap.String("export", name),
				zap.Int("results", len(def.ResultTypes())))
			continue
		}
		if _, err := m.instance.NewFunction(name, sig, newExport(m, name)); err != nil {
			return err
		}
	}
	return nil
}

// memoryDefinition returns the module's imported or exported memory, or
// nil. api.Module.Memory cannot answer this: without a memory it returns
// a non-nil interface over a nil instance.
func memoryDefinition(compiled wazero.CompiledModule) api.MemoryDefinition {
	if imported := compiled.ImportedMemories(); len(imported) > 0 {
		return imported[0]
	}
	for _, def := range compiled.ExportedMemories() {
		return def
	}
	return nil
}

// signatureOf converts a wazero definition. Functions with more than one
// result have no slot representation.
func signatureOf(def api.FunctionDefinition) (*wasm.FuncType, bool) {
	results := def.ResultTypes()
	if len(results) > 1 {
		return nil, false
	}
	params := make([]wasm.ValType, len(def.ParamTypes()))
	for i, p := range def.ParamTypes() {
		// wazero value types use the binary encoding.
		params[i] = wasm.ValType(p)
		if !params[i].Valid() {
			return nil, false
		}
	}
	result := wasm.ValNone
	if len(results) == 1 {
		result = wasm.ValType(results[0])
		if !result.Valid() {
			return nil, false
		}
	}
	return wasm.NewFuncType(params, result), true
}

// Instance returns the runtime module instance holding the exports.
func (m *Module) Instance() *runtime.ModuleInstance { return m.instance }

// Function looks up an exported function.
func (m *Module) Function(name string) (*runtime.FunctionInstance, bool) {
	return m.instance.Function(name)
}

// Exports returns the names of invocable exports, sorted.
func (m *Module) Exports() []string { return m.instance.Functions() }

// Memory returns the reservation standing in for the module's memory, or
// nil when the module has none.
func (m *Module) Memory() *runtime.MemoryInstance { return m.memory }

// Table returns the reservation standing in for the module's table.
func (m *Module) Table() *runtime.TableInstance { return m.table }

// ReadMemory copies length bytes at offset out of the module's linear
// memory.
func (m *Module) ReadMemory(offset, length uint32) ([]byte, bool) {
	if m.linear == nil {
		return nil, false
	}
	data, ok := m.linear.Read(offset, length)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Close releases the wazero instance and the runtime reservations.
func (m *Module) Close(ctx context.Context) error {
	var firstErr error
	if m.module != nil {
		if err := m.module.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if m.compiled != nil {
		if err := m.compiled.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.instance.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
