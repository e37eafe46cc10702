package runtime

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-callgate/errors"
	"github.com/wippyai/wasm-callgate/platform"
	"github.com/wippyai/wasm-callgate/runtime/internal/region"
	"github.com/wippyai/wasm-callgate/wasm"
)

// Thunk calls a native entry point of one signature. slots holds the
// arguments in parameter order followed by the result slot, if any; the
// thunk writes the result there.
type Thunk func(ctx context.Context, entry any, slots []uint64)

// CodeGenerator produces invoke thunks and knows the code it emitted.
type CodeGenerator interface {
	// InvokeThunk returns the thunk for functions of signature sig.
	InvokeThunk(sig *wasm.FuncType) Thunk

	// DescribeAddress describes ip if it lies in generated code.
	DescribeAddress(ip uintptr) (string, bool)
}

// AddressOwnership tells whether a faulting address lies in the range
// reserved for some table or some memory.
type AddressOwnership interface {
	IsAddressInSomeTable(addr uintptr) bool
	IsAddressInSomeMemory(addr uintptr) bool
}

const (
	defaultTableReservation  = 1 << 20
	defaultMemoryReservation = 64 << 20
	maxReservation           = 1 << 32
)

// Config holds runtime settings.
type Config struct {
	// Logger receives runtime logs. Defaults to the package logger.
	Logger *zap.Logger
	// Platform defaults to platform.NewNative().
	Platform platform.Platform
	// Ownership overrides the address ranges registered by tables and
	// memories of this runtime.
	Ownership AddressOwnership
	// Registerer receives the runtime's metrics. Nil disables registration.
	Registerer prometheus.Registerer
	// TableReservation and MemoryReservation size the address ranges of
	// tables and memories without a maximum, in bytes.
	TableReservation  uintptr
	MemoryReservation uintptr
}

// Option configures a Runtime.
type Option func(*Config)

func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithPlatform(p platform.Platform) Option {
	return func(c *Config) { c.Platform = p }
}

func WithOwnership(o AddressOwnership) Option {
	return func(c *Config) { c.Ownership = o }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) { c.Registerer = reg }
}

func WithReservationSizes(table, memory uintptr) Option {
	return func(c *Config) {
		c.TableReservation = table
		c.MemoryReservation = memory
	}
}

// Runtime is the call boundary between the host and generated code.
// It is safe for concurrent use.
type Runtime struct {
	codegen   CodeGenerator
	platform  platform.Platform
	ownership AddressOwnership
	regions   *region.Registry
	logger    *zap.Logger
	metrics   *metrics
	abort     func()
	cfg       Config
}

// New creates a runtime over codegen.
func New(codegen CodeGenerator, opts ...Option) (*Runtime, error) {
	if codegen == nil {
		return nil, errors.NotInitialized(errors.PhaseConfig, "code generator")
	}

	cfg := Config{
		TableReservation:  defaultTableReservation,
		MemoryReservation: defaultMemoryReservation,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TableReservation == 0 || cfg.MemoryReservation == 0 {
		return nil, errors.Config("reservation sizes must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}
	if cfg.Platform == nil {
		cfg.Platform = platform.NewNative()
	}

	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "register metrics")
	}

	r := &Runtime{
		codegen:  codegen,
		platform: cfg.Platform,
		regions:  region.New(),
		logger:   cfg.Logger,
		metrics:  m,
		cfg:      cfg,
	}
	r.ownership = cfg.Ownership
	if r.ownership == nil {
		r.ownership = regionOwnership{r.regions}
	}
	r.abort = r.fatalExit
	return r, nil
}

// Platform returns the platform the runtime captures faults with.
func (r *Runtime) Platform() platform.Platform {
	return r.platform
}

// fatalExit terminates the process after a diagnostic has been logged.
func (r *Runtime) fatalExit() {
	_ = r.logger.Sync()
	os.Exit(2)
}

// fatalLogger returns a logger that will print error level entries. A
// disabled runtime logger must not swallow the diagnostic of a fatal
// fault.
func (r *Runtime) fatalLogger() *zap.Logger {
	if r.logger.Core().Enabled(zapcore.ErrorLevel) {
		return r.logger
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zapcore.ErrorLevel)
	return zap.New(core).Named("callgate")
}

type regionOwnership struct {
	regions *region.Registry
}

func (o regionOwnership) IsAddressInSomeTable(addr uintptr) bool {
	owner, ok := o.regions.Lookup(addr)
	return ok && owner == region.OwnerTable
}

func (o regionOwnership) IsAddressInSomeMemory(addr uintptr) bool {
	owner, ok := o.regions.Lookup(addr)
	return ok && owner == region.OwnerMemory
}
