package clif

// ValueID identifies a Value within a Function's value pool (§3.1). Every Value has
// exactly one defining Instruction or block-parameter position, preserving strict SSA.
type ValueID uint32

// ValueInvalid is the sentinel for "no value".
const ValueInvalid ValueID = 0

// valueData is the per-ValueID bookkeeping the Function keeps in its value pool: the
// type and the instruction that defines it (nil if it is a block parameter).
type valueData struct {
	typ Type
	def *Instruction
	// definedInBlockParam is set when this value was appended as a block parameter
	// rather than produced by an Instruction.
	definedInBlockParam bool
}
