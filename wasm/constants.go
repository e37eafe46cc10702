package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs used when assembling or inspecting module binaries.
const (
	SectionCustom   byte = 0
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionTable    byte = 4
	SectionMemory   byte = 5
	SectionGlobal   byte = 6
	SectionExport   byte = 7
	SectionStart    byte = 8
	SectionElement  byte = 9
	SectionCode     byte = 10
	SectionData     byte = 11
)

// Import/Export descriptor kinds in the binary format.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
)

// FuncTypeByte prefixes a function type in the type section.
const FuncTypeByte byte = 0x60

// Value type encodings as defined in the WebAssembly binary format.
const (
	ValI32     ValType = 0x7F // 32-bit integer
	ValI64     ValType = 0x7E // 64-bit integer
	ValF32     ValType = 0x7D // 32-bit float
	ValF64     ValType = 0x7C // 64-bit float
	ValFuncRef ValType = 0x70 // Function reference
	ValExtern  ValType = 0x6F // External reference

	// ValNone marks the absence of a result. It shares the encoding of
	// the empty block type.
	ValNone ValType = 0x40
)

// Opcodes referenced by engine tests and diagnostics.
const (
	OpUnreachable  byte = 0x00
	OpEnd          byte = 0x0B
	OpCall         byte = 0x10
	OpCallIndirect byte = 0x11
	OpDrop         byte = 0x1A
	OpLocalGet     byte = 0x20
	OpI32Load      byte = 0x28
	OpI32Const     byte = 0x41
	OpI32Add       byte = 0x6A
	OpI32DivS      byte = 0x6D
	OpI64DivS      byte = 0x7F
	OpI32TruncF32S byte = 0xA8
)

// PageSize is the size of a linear memory page in bytes.
const PageSize = 65536
