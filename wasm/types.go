package wasm

import (
	"math"
	"strings"
	"sync"
)

// ValType represents a WebAssembly value type.
// See constants.go for ValI32, ValI64, ValF32, ValF64, etc.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	case ValNone:
		return "none"
	default:
		return "unknown"
	}
}

// Valid reports whether v is a value type a Value can carry.
func (v ValType) Valid() bool {
	switch v {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExtern:
		return true
	}
	return false
}

// FuncType is a function signature: ordered parameter types and at most
// one result. Values returned by NewFuncType are interned and must not be
// mutated.
type FuncType struct {
	Params []ValType
	// Result is ValNone when the function returns nothing.
	Result ValType
}

var (
	internMu sync.RWMutex
	interned = make(map[string]*FuncType)
)

// NewFuncType returns the canonical signature for params and result.
// Structurally equal signatures share one *FuncType.
func NewFuncType(params []ValType, result ValType) *FuncType {
	key := signatureKey(params, result)

	internMu.RLock()
	ft, ok := interned[key]
	internMu.RUnlock()
	if ok {
		return ft
	}

	internMu.Lock()
	defer internMu.Unlock()
	if ft, ok := interned[key]; ok {
		return ft
	}
	ft = &FuncType{
		Params: append([]ValType(nil), params...),
		Result: result,
	}
	interned[key] = ft
	return ft
}

func signatureKey(params []ValType, result ValType) string {
	b := make([]byte, 0, len(params)+1)
	for _, p := range params {
		b = append(b, byte(p))
	}
	b = append(b, byte(result))
	return string(b)
}

// Arity returns the number of results: 0 or 1.
func (f *FuncType) Arity() int {
	if f.Result == ValNone {
		return 0
	}
	return 1
}

// SlotCount returns the number of 64-bit slots an invocation buffer needs:
// one per parameter followed by one for the result, if any.
func (f *FuncType) SlotCount() int {
	return len(f.Params) + f.Arity()
}

// Equal reports structural equality.
func (f *FuncType) Equal(o *FuncType) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil {
		return false
	}
	if f.Result != o.Result || len(f.Params) != len(o.Params) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

func (f *FuncType) String() string {
	var b strings.Builder
	b.WriteString("(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	b.WriteString(f.Result.String())
	return b.String()
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

func (g GlobalType) String() string {
	if g.Mutable {
		return "mut " + g.ValType.String()
	}
	return g.ValType.String()
}

// Unbounded is the Max of a size range without an upper limit.
const Unbounded uint64 = math.MaxUint64

// SizeConstraints is the allowed [Min, Max] size range of a table or memory.
type SizeConstraints struct {
	Min uint64
	Max uint64
}

// IsSubset reports whether sub lies entirely within super.
func IsSubset(super, sub SizeConstraints) bool {
	return sub.Min >= super.Min && sub.Max <= super.Max
}

// TableType describes a table with element type and size limits.
type TableType struct {
	ElemType ValType
	Size     SizeConstraints
}

// MemoryType describes a linear memory with size limits in pages.
type MemoryType struct {
	Size SizeConstraints
}

// ObjectKind is the discriminant of runtime objects.
type ObjectKind uint8

const (
	ObjectKindFunction ObjectKind = iota
	ObjectKindGlobal
	ObjectKindTable
	ObjectKindMemory
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectKindFunction:
		return "function"
	case ObjectKindGlobal:
		return "global"
	case ObjectKindTable:
		return "table"
	case ObjectKindMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// ObjectType is the expected type of a runtime object. Only the field
// matching Kind is meaningful.
type ObjectType struct {
	Func   *FuncType
	Global GlobalType
	Table  TableType
	Memory MemoryType
	Kind   ObjectKind
}

// FuncObject returns the object type of functions with signature ft.
func FuncObject(ft *FuncType) ObjectType {
	return ObjectType{Kind: ObjectKindFunction, Func: ft}
}

// GlobalObject returns the object type of globals of type gt.
func GlobalObject(gt GlobalType) ObjectType {
	return ObjectType{Kind: ObjectKindGlobal, Global: gt}
}

// TableObject returns the object type of tables of type tt.
func TableObject(tt TableType) ObjectType {
	return ObjectType{Kind: ObjectKindTable, Table: tt}
}

// MemoryObject returns the object type of memories of type mt.
func MemoryObject(mt MemoryType) ObjectType {
	return ObjectType{Kind: ObjectKindMemory, Memory: mt}
}
