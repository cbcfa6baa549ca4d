package clif

import "fmt"

// Opcode identifies the operation an Instruction performs. Following the teacher's
// flattened-variant style (ssa.Instruction in wazevo), a single Instruction struct
// carries every opcode's operands; which fields are meaningful depends on Opcode.
type Opcode uint32

const (
	OpcodeInvalid Opcode = iota

	// Arithmetic.
	OpcodeIadd
	OpcodeIsub
	OpcodeImul
	OpcodeSdiv
	OpcodeUdiv
	OpcodeSrem
	OpcodeUrem
	OpcodeBand
	OpcodeBor
	OpcodeBxor
	OpcodeBnot
	OpcodeIshl
	OpcodeSshr
	OpcodeUshr
	OpcodeRotl
	OpcodeRotr
	OpcodeIcmp
	OpcodeSelect

	// Conversions.
	OpcodeSextend
	OpcodeUextend
	OpcodeIreduce

	// Constants.
	OpcodeIconst

	// Memory.
	OpcodeLoad
	OpcodeStore
	OpcodeStackAddr
	OpcodeStackLoad
	OpcodeStackStore

	// Control flow.
	OpcodeJump
	OpcodeBrif
	OpcodeBrTable
	OpcodeCall
	OpcodeCallIndirect
	OpcodeReturn
	OpcodeTrap
)

func (o Opcode) String() string {
	switch o {
	case OpcodeIadd:
		return "iadd"
	case OpcodeIsub:
		return "isub"
	case OpcodeImul:
		return "imul"
	case OpcodeSdiv:
		return "sdiv"
	case OpcodeUdiv:
		return "udiv"
	case OpcodeSrem:
		return "srem"
	case OpcodeUrem:
		return "urem"
	case OpcodeBand:
		return "band"
	case OpcodeBor:
		return "bor"
	case OpcodeBxor:
		return "bxor"
	case OpcodeBnot:
		return "bnot"
	case OpcodeIshl:
		return "ishl"
	case OpcodeSshr:
		return "sshr"
	case OpcodeUshr:
		return "ushr"
	case OpcodeRotl:
		return "rotl"
	case OpcodeRotr:
		return "rotr"
	case OpcodeIcmp:
		return "icmp"
	case OpcodeSelect:
		return "select"
	case OpcodeSextend:
		return "sextend"
	case OpcodeUextend:
		return "uextend"
	case OpcodeIreduce:
		return "ireduce"
	case OpcodeIconst:
		return "iconst"
	case OpcodeLoad:
		return "load"
	case OpcodeStore:
		return "store"
	case OpcodeStackAddr:
		return "stack_addr"
	case OpcodeStackLoad:
		return "stack_load"
	case OpcodeStackStore:
		return "stack_store"
	case OpcodeJump:
		return "jump"
	case OpcodeBrif:
		return "brif"
	case OpcodeBrTable:
		return "br_table"
	case OpcodeCall:
		return "call"
	case OpcodeCallIndirect:
		return "call_indirect"
	case OpcodeReturn:
		return "return"
	case OpcodeTrap:
		return "trap"
	default:
		return "invalid"
	}
}

// IntCC is an integer comparison condition code for OpcodeIcmp (§3.1).
type IntCC byte

const (
	IntCCEqual IntCC = iota
	IntCCNotEqual
	IntCCSignedLessThan
	IntCCSignedGreaterThanOrEqual
	IntCCSignedGreaterThan
	IntCCSignedLessThanOrEqual
	IntCCUnsignedLessThan
	IntCCUnsignedGreaterThanOrEqual
	IntCCUnsignedGreaterThan
	IntCCUnsignedLessThanOrEqual
)

// MemFlags carries alias/trap metadata for memory instructions (§3.1 "memory flags").
// Bit 0: the access cannot trap (e.g. known in-bounds). Bit 1: the access is aligned
// to its natural size. Both are advisory hints consumed by lowering, never required
// for correctness.
type MemFlags uint8

const (
	MemFlagNotrap MemFlags = 1 << iota
	MemFlagAligned
)

// Instruction is a single CLIF instruction. Operand/result Value slots and the typ
// field are reused across opcodes the way wazevo's ssa.Instruction reuses v/v2/v3/vs;
// immediates live in the union of imm64/offset/cc/flags/target fields.
type Instruction struct {
	opcode Opcode

	// Up to three direct value operands, plus an overflow slice for br_table/call args.
	arg0, arg1, arg2 ValueID
	args             []ValueID

	// Results: a single result is the common case; call/call_indirect may produce
	// up to two (the ABI's two result registers, §4.9).
	result0, result1 ValueID

	typ Type

	imm64  int64
	offset int32
	cc     IntCC
	flags  MemFlags

	// Control-flow immediates.
	target       BlockID
	targets      []BlockID // br_table jump table / brif [then, else]
	blockArgs    [][]ValueID
	callTarget   FuncRefID
	callSig      SignatureID
	indirectFunc ValueID

	stackSlot StackSlotID

	blk  BlockID
	link linkedInstr
}

// Opcode returns this instruction's opcode.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// Result returns the (first) result value of this instruction, or ValueInvalid.
func (i *Instruction) Result() ValueID { return i.result0 }

// Results returns both result values (the second is ValueInvalid unless this is a
// two-result call per the ABI, §4.9).
func (i *Instruction) Results() (ValueID, ValueID) { return i.result0, i.result1 }

// Args returns up to three direct operands plus the overflow slice.
func (i *Instruction) Args() (ValueID, ValueID, ValueID, []ValueID) {
	return i.arg0, i.arg1, i.arg2, i.args
}

// Imm64 returns the integer immediate (iconst value, offsets already folded elsewhere).
func (i *Instruction) Imm64() int64 { return i.imm64 }

// Offset returns the byte offset immediate carried by load/store-family instructions.
func (i *Instruction) Offset() int32 { return i.offset }

// Cond returns the condition code of an icmp instruction.
func (i *Instruction) Cond() IntCC { return i.cc }

// Flags returns the memory flags of a load/store instruction.
func (i *Instruction) Flags() MemFlags { return i.flags }

// Target returns the unconditional jump target of a jump instruction.
func (i *Instruction) Target() BlockID { return i.target }

// BrifTargets returns (then, else) for a brif instruction.
func (i *Instruction) BrifTargets() (BlockID, BlockID) {
	if len(i.targets) != 2 {
		panic("BUG: brif must have exactly 2 targets")
	}
	return i.targets[0], i.targets[1]
}

// BrTableTargets returns the jump table for a br_table instruction.
func (i *Instruction) BrTableTargets() []BlockID { return i.targets }

// BlockArgsFor returns the argument vector supplied to the targetIdx-th branch target.
func (i *Instruction) BlockArgsFor(targetIdx int) []ValueID {
	if targetIdx >= len(i.blockArgs) {
		return nil
	}
	return i.blockArgs[targetIdx]
}

// CallTarget returns the callee FuncRefID of a direct call.
func (i *Instruction) CallTarget() FuncRefID { return i.callTarget }

// CallSignature returns the SignatureID used by a call/call_indirect instruction.
func (i *Instruction) CallSignature() SignatureID { return i.callSig }

// IndirectCallee returns the function-pointer Value of a call_indirect instruction.
func (i *Instruction) IndirectCallee() ValueID { return i.indirectFunc }

// StackSlot returns the stack slot referenced by stack_addr/stack_load/stack_store.
func (i *Instruction) StackSlot() StackSlotID { return i.stackSlot }

// Block returns the block this instruction is inserted into.
func (i *Instruction) Block() BlockID { return i.blk }

// IsTerminator reports whether this opcode ends a basic block (§3.1: jump, brif,
// br_table, return, and trap are all terminators).
func (i *Instruction) IsTerminator() bool {
	switch i.opcode {
	case OpcodeJump, OpcodeBrif, OpcodeBrTable, OpcodeReturn, OpcodeTrap:
		return true
	default:
		return false
	}
}

func (i *Instruction) reset() {
	*i = Instruction{}
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%s", i.opcode)
}
