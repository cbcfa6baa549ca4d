// Package wasmfrontend translates a sequence of WebAssembly operators into CLIF,
// maintaining a value stack and a control stack the way a Wasm virtual machine would
// (§4.2). It is the one component of this backend that consumes bytecode rather than
// an already-built IR.
package wasmfrontend

import "github.com/cot-lang/cotc/internal/clif"

// Opcode is a WebAssembly instruction opcode, using the standard single-byte
// encoding from the WebAssembly core binary format.
type Opcode byte

const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0B
	OpBr          Opcode = 0x0C
	OpBrIf        Opcode = 0x0D
	OpBrTable     Opcode = 0x0E
	OpReturn      Opcode = 0x0F
	OpCall        Opcode = 0x10
	OpCallIndirect Opcode = 0x11

	OpDrop   Opcode = 0x1A
	OpSelect Opcode = 0x1B

	OpLocalGet Opcode = 0x20
	OpLocalSet Opcode = 0x21
	OpLocalTee Opcode = 0x22

	OpI32Load Opcode = 0x28
	OpI64Load Opcode = 0x29
	OpI32Store Opcode = 0x36
	OpI64Store Opcode = 0x37

	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42

	OpI32Eqz Opcode = 0x45
	OpI32Eq  Opcode = 0x46
	OpI32Ne  Opcode = 0x47
	OpI32LtS Opcode = 0x48
	OpI32LtU Opcode = 0x49
	OpI32GtS Opcode = 0x4A
	OpI32GtU Opcode = 0x4B
	OpI32LeS Opcode = 0x4C
	OpI32LeU Opcode = 0x4D
	OpI32GeS Opcode = 0x4E
	OpI32GeU Opcode = 0x4F

	OpI64Eqz Opcode = 0x50
	OpI64Eq  Opcode = 0x51
	OpI64Ne  Opcode = 0x52
	OpI64LtS Opcode = 0x53
	OpI64LtU Opcode = 0x54
	OpI64GtS Opcode = 0x55
	OpI64GtU Opcode = 0x56
	OpI64LeS Opcode = 0x57
	OpI64LeU Opcode = 0x58
	OpI64GeS Opcode = 0x59
	OpI64GeU Opcode = 0x5A

	OpI32Add  Opcode = 0x6A
	OpI32Sub  Opcode = 0x6B
	OpI32Mul  Opcode = 0x6C
	OpI32DivS Opcode = 0x6D
	OpI32DivU Opcode = 0x6E
	OpI32RemS Opcode = 0x6F
	OpI32RemU Opcode = 0x70
	OpI32And  Opcode = 0x71
	OpI32Or   Opcode = 0x72
	OpI32Xor  Opcode = 0x73
	OpI32Shl  Opcode = 0x74
	OpI32ShrS Opcode = 0x75
	OpI32ShrU Opcode = 0x76
	OpI32Rotl Opcode = 0x77
	OpI32Rotr Opcode = 0x78

	OpI64Add  Opcode = 0x7C
	OpI64Sub  Opcode = 0x7D
	OpI64Mul  Opcode = 0x7E
	OpI64DivS Opcode = 0x7F
	OpI64DivU Opcode = 0x80
	OpI64RemS Opcode = 0x81
	OpI64RemU Opcode = 0x82
	OpI64And  Opcode = 0x83
	OpI64Or   Opcode = 0x84
	OpI64Xor  Opcode = 0x85
	OpI64Shl  Opcode = 0x86
	OpI64ShrS Opcode = 0x87
	OpI64ShrU Opcode = 0x88
	OpI64Rotl Opcode = 0x89
	OpI64Rotr Opcode = 0x8A

	OpI32WrapI64    Opcode = 0xA7
	OpI64ExtendI32S Opcode = 0xAC
	OpI64ExtendI32U Opcode = 0xAD
)

// BlockType describes the arity of a structured control-flow construct's params and
// results (§4.2 control-stack frames). The front end's real encoding (a type-section
// index or one-of-value-types) is out of this subsystem's scope (§1); the translator
// here is handed an already-resolved BlockType by its caller.
type BlockType struct {
	Params  []ValType
	Results []ValType
}

// ValType is a Wasm value type, the unit the translator's value stack and locals
// table are typed in before lowering to clif.Type.
type ValType byte

const (
	ValI32 ValType = iota
	ValI64
)

// ToCLIF maps a Wasm value type to its CLIF counterpart (§4.2, §3.1).
func (v ValType) ToCLIF() clif.Type {
	switch v {
	case ValI32:
		return clif.TypeI32
	case ValI64:
		return clif.TypeI64
	default:
		panic("wasmfrontend: unknown ValType")
	}
}
