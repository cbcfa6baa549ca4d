package clif

// Function owns a signature, an ordered list of basic blocks, a pool of typed values,
// a pool of external signatures/function references, and a stack-slot table (§3.1).
// It is arena-backed: compiling a new function calls Reset rather than allocating a
// fresh Function, mirroring wazevo's ssa.Builder.Init (§9 "Arena allocation for IR").
type Function struct {
	Name      string
	Signature *Signature

	blocks      Pool[Block]
	blockOrder  []BlockID
	instrs      Pool[Instruction]
	values      []valueData
	stackSlots  []StackSlot
	signatures  map[SignatureID]*Signature
	funcRefs    map[FuncRefID]*FuncRef
	nextSigID   SignatureID
	nextRefID   FuncRefID
	nextSlotID  StackSlotID
}

// NewFunction returns an empty Function ready for Init.
func NewFunction() *Function {
	f := &Function{
		blocks:     NewPool[Block](),
		instrs:     NewPool[Instruction](),
		signatures: make(map[SignatureID]*Signature),
		funcRefs:   make(map[FuncRefID]*FuncRef),
	}
	return f
}

// Reset reinitializes the Function for a new compilation, reusing its arenas.
func (f *Function) Reset(name string, sig *Signature) {
	f.Name = name
	f.Signature = sig
	f.blocks.Reset()
	f.instrs.Reset()
	f.blockOrder = f.blockOrder[:0]
	f.values = f.values[:0]
	f.stackSlots = f.stackSlots[:0]
	for k := range f.signatures {
		delete(f.signatures, k)
	}
	for k := range f.funcRefs {
		delete(f.funcRefs, k)
	}
	f.nextSigID = 0
	f.nextRefID = 0
	f.nextSlotID = 0
}

// Blocks returns the function's block order: creation order while the function is
// being built, then, once Builder.Finalize has run, the reverse postorder it lays the
// blocks out in (including any trampoline blocks critical-edge splitting inserted).
func (f *Function) Blocks() []BlockID { return f.blockOrder }

// Block returns the Block for the given id.
func (f *Function) Block(id BlockID) *Block { return f.blocks.View(int(id)) }

// ValueType returns the declared type of a value.
func (f *Function) ValueType(v ValueID) Type {
	if v == ValueInvalid {
		return TypeInvalid
	}
	return f.values[v-1].typ
}

// ValueDef returns the instruction defining v, or nil if v is a block parameter.
func (f *Function) ValueDef(v ValueID) *Instruction {
	if v == ValueInvalid {
		return nil
	}
	return f.values[v-1].def
}

// StackSlots returns all declared stack slots.
func (f *Function) StackSlots() []StackSlot { return f.stackSlots }

// StackSlot returns the slot with the given id.
func (f *Function) StackSlot(id StackSlotID) *StackSlot { return &f.stackSlots[id] }

// Signatures returns the imported signature pool.
func (f *Function) Signatures() map[SignatureID]*Signature { return f.signatures }

// FuncRefs returns the imported function-reference pool.
func (f *Function) FuncRefs() map[FuncRefID]*FuncRef { return f.funcRefs }

// FuncRef returns the reference with the given id.
func (f *Function) FuncRef(id FuncRefID) *FuncRef { return f.funcRefs[id] }

func (f *Function) allocateValue(typ Type) ValueID {
	f.values = append(f.values, valueData{typ: typ})
	return ValueID(len(f.values))
}
