package clif

import "fmt"

// Builder constructs a Function incrementally while maintaining SSA invariants (§4.1).
// It is stateful: one block is "current" at a time, and instructions are appended to it.
type Builder struct {
	f       *Function
	current BlockID
	hasCur  bool
}

// NewBuilder returns a Builder over a fresh Function.
func NewBuilder() *Builder {
	return &Builder{f: NewFunction()}
}

// Init prepares the builder (and its Function) to build a new function under the
// given name and signature, discarding any previous function's IR (§4.1, §9).
func (b *Builder) Init(name string, sig *Signature) {
	b.f.Reset(name, sig)
	b.hasCur = false
}

// Func returns the Function under construction.
func (b *Builder) Func() *Function { return b.f }

// CreateBlock allocates a new, unsealed, parameterless basic block.
func (b *Builder) CreateBlock() BlockID {
	blk := b.f.blocks.Allocate()
	id := BlockID(b.f.blocks.Allocated() - 1)
	blk.id = id
	b.f.blockOrder = append(b.f.blockOrder, id)
	return id
}

// CreateEntryBlock creates the function's entry block and appends one parameter per
// signature parameter, per §4.1 ("append formal parameters to the entry block").
func (b *Builder) CreateEntryBlock() BlockID {
	entry := b.CreateBlock()
	for _, p := range b.f.Signature.Params {
		b.AppendBlockParam(entry, p.Type)
	}
	return entry
}

// AppendBlockParam appends a new typed parameter to blk and returns its value id.
func (b *Builder) AppendBlockParam(blk BlockID, typ Type) ValueID {
	block := b.f.blocks.View(int(blk))
	v := b.f.allocateValue(typ)
	b.f.values[v-1].definedInBlockParam = true
	block.params = append(block.params, v)
	return v
}

// SetCurrentBlock moves the insertion cursor to blk.
func (b *Builder) SetCurrentBlock(blk BlockID) {
	b.current = blk
	b.hasCur = true
}

// CurrentBlock returns the block instructions are currently appended to.
func (b *Builder) CurrentBlock() BlockID {
	if !b.hasCur {
		panic("BUG: no current block set")
	}
	return b.current
}

// AddPred records a predecessor edge for liveness/allocator bookkeeping (§3.3, §4.4).
// It is forbidden once the target block has been Sealed.
func (b *Builder) AddPred(blk, pred BlockID) {
	block := b.f.blocks.View(int(blk))
	if block.sealed {
		panic("BUG: cannot add predecessor to a sealed block")
	}
	block.preds = append(block.preds, pred)
}

// Seal finalizes blk's phi/block-param SSA form: after this call, AddPred(blk, ...)
// panics (§4.1).
func (b *Builder) Seal(blk BlockID) {
	b.f.blocks.View(int(blk)).sealed = true
}

// SealAll seals every block created so far. Implementations that build a full CFG
// before finalizing can call this once at function end.
func (b *Builder) SealAll() {
	for _, id := range b.f.blockOrder {
		b.f.blocks.View(int(id)).sealed = true
	}
}

func (b *Builder) alloc() *Instruction {
	return b.f.instrs.Allocate()
}

func (b *Builder) insert(inst *Instruction) {
	blk := b.f.blocks.View(int(b.CurrentBlock()))
	if blk.last != nil && blk.last.IsTerminator() {
		panic("BUG: cannot append after a terminator")
	}
	inst.blk = blk.id
	if blk.first == nil {
		blk.first = inst
		blk.last = inst
	} else {
		inst.link.prevPtr = blk.last
		blk.last.link.nextPtr = inst
		blk.last = inst
	}
}

func (b *Builder) result(inst *Instruction, typ Type) ValueID {
	v := b.f.allocateValue(typ)
	b.f.values[v-1].def = inst
	inst.result0 = v
	return v
}

// binaryResultType returns the result type for arithmetic/bitwise binary opcodes: the
// shared operand type.
func (b *Builder) binaryResultType(x ValueID) Type { return b.f.ValueType(x) }

// --- Arithmetic / bitwise ---

func (b *Builder) binary(op Opcode, x, y ValueID) ValueID {
	inst := b.alloc()
	inst.opcode = op
	inst.arg0, inst.arg1 = x, y
	b.insert(inst)
	return b.result(inst, b.binaryResultType(x))
}

func (b *Builder) Iadd(x, y ValueID) ValueID { return b.binary(OpcodeIadd, x, y) }
func (b *Builder) Isub(x, y ValueID) ValueID { return b.binary(OpcodeIsub, x, y) }
func (b *Builder) Imul(x, y ValueID) ValueID { return b.binary(OpcodeImul, x, y) }
func (b *Builder) Sdiv(x, y ValueID) ValueID { return b.binary(OpcodeSdiv, x, y) }
func (b *Builder) Udiv(x, y ValueID) ValueID { return b.binary(OpcodeUdiv, x, y) }
func (b *Builder) Srem(x, y ValueID) ValueID { return b.binary(OpcodeSrem, x, y) }
func (b *Builder) Urem(x, y ValueID) ValueID { return b.binary(OpcodeUrem, x, y) }
func (b *Builder) Band(x, y ValueID) ValueID { return b.binary(OpcodeBand, x, y) }
func (b *Builder) Bor(x, y ValueID) ValueID  { return b.binary(OpcodeBor, x, y) }
func (b *Builder) Bxor(x, y ValueID) ValueID { return b.binary(OpcodeBxor, x, y) }
func (b *Builder) Ishl(x, y ValueID) ValueID { return b.binary(OpcodeIshl, x, y) }
func (b *Builder) Sshr(x, y ValueID) ValueID { return b.binary(OpcodeSshr, x, y) }
func (b *Builder) Ushr(x, y ValueID) ValueID { return b.binary(OpcodeUshr, x, y) }
func (b *Builder) Rotl(x, y ValueID) ValueID { return b.binary(OpcodeRotl, x, y) }
func (b *Builder) Rotr(x, y ValueID) ValueID { return b.binary(OpcodeRotr, x, y) }

func (b *Builder) Bnot(x ValueID) ValueID {
	inst := b.alloc()
	inst.opcode = OpcodeBnot
	inst.arg0 = x
	b.insert(inst)
	return b.result(inst, b.f.ValueType(x))
}

// Icmp appends an integer comparison, producing an i8 0/1 boolean result (Wasm
// convention is i32; callers needing that width follow with Uextend, §4.2).
func (b *Builder) Icmp(cc IntCC, x, y ValueID) ValueID {
	inst := b.alloc()
	inst.opcode = OpcodeIcmp
	inst.arg0, inst.arg1 = x, y
	inst.cc = cc
	b.insert(inst)
	return b.result(inst, TypeI8)
}

// Select appends a select instruction: cond != 0 ? x : y.
func (b *Builder) Select(cond, x, y ValueID) ValueID {
	inst := b.alloc()
	inst.opcode = OpcodeSelect
	inst.arg0, inst.arg1, inst.arg2 = cond, x, y
	b.insert(inst)
	return b.result(inst, b.f.ValueType(x))
}

func (b *Builder) Sextend(x ValueID, to Type) ValueID { return b.convert(OpcodeSextend, x, to) }
func (b *Builder) Uextend(x ValueID, to Type) ValueID { return b.convert(OpcodeUextend, x, to) }
func (b *Builder) Ireduce(x ValueID, to Type) ValueID { return b.convert(OpcodeIreduce, x, to) }

func (b *Builder) convert(op Opcode, x ValueID, to Type) ValueID {
	inst := b.alloc()
	inst.opcode = op
	inst.arg0 = x
	b.insert(inst)
	return b.result(inst, to)
}

// Iconst appends an integer constant of the given type.
func (b *Builder) Iconst(typ Type, v int64) ValueID {
	inst := b.alloc()
	inst.opcode = OpcodeIconst
	inst.imm64 = v
	b.insert(inst)
	return b.result(inst, typ)
}

// --- Memory ---

// Load appends a load of typ from ptr+offset.
func (b *Builder) Load(typ Type, ptr ValueID, offset int32, flags MemFlags) ValueID {
	inst := b.alloc()
	inst.opcode = OpcodeLoad
	inst.arg0 = ptr
	inst.offset = offset
	inst.flags = flags
	b.insert(inst)
	return b.result(inst, typ)
}

// Store appends a store of val to ptr+offset.
func (b *Builder) Store(val, ptr ValueID, offset int32, flags MemFlags) {
	inst := b.alloc()
	inst.opcode = OpcodeStore
	inst.arg0, inst.arg1 = val, ptr
	inst.offset = offset
	inst.flags = flags
	b.insert(inst)
}

// StackAddr appends an instruction taking the address of a stack slot.
func (b *Builder) StackAddr(slot StackSlotID, addrType Type) ValueID {
	inst := b.alloc()
	inst.opcode = OpcodeStackAddr
	inst.stackSlot = slot
	b.insert(inst)
	return b.result(inst, addrType)
}

// StackLoad appends a direct load from a stack slot (no address materialization).
func (b *Builder) StackLoad(typ Type, slot StackSlotID, offset int32) ValueID {
	inst := b.alloc()
	inst.opcode = OpcodeStackLoad
	inst.stackSlot = slot
	inst.offset = offset
	b.insert(inst)
	return b.result(inst, typ)
}

// StackStore appends a direct store to a stack slot.
func (b *Builder) StackStore(val ValueID, slot StackSlotID, offset int32) {
	inst := b.alloc()
	inst.opcode = OpcodeStackStore
	inst.arg0 = val
	inst.stackSlot = slot
	inst.offset = offset
	b.insert(inst)
}

// DeclareStackSlot declares a sized, aligned stack slot and returns its reference (§4.1).
func (b *Builder) DeclareStackSlot(size int64, alignShift uint8) StackSlotID {
	id := StackSlotID(len(b.f.stackSlots))
	b.f.stackSlots = append(b.f.stackSlots, StackSlot{ID: id, Size: size, AlignShift: alignShift})
	return id
}

// --- Control flow ---

// Jump appends an unconditional jump to target with the given block-parameter arguments.
func (b *Builder) Jump(target BlockID, args []ValueID) {
	inst := b.alloc()
	inst.opcode = OpcodeJump
	inst.target = target
	inst.blockArgs = [][]ValueID{args}
	b.insert(inst)
	b.AddPred(target, b.CurrentBlock())
}

// Brif appends a conditional branch: cond != 0 branches to thenBlk, else to elseBlk.
func (b *Builder) Brif(cond ValueID, thenBlk BlockID, thenArgs []ValueID, elseBlk BlockID, elseArgs []ValueID) {
	inst := b.alloc()
	inst.opcode = OpcodeBrif
	inst.arg0 = cond
	inst.targets = []BlockID{thenBlk, elseBlk}
	inst.blockArgs = [][]ValueID{thenArgs, elseArgs}
	b.insert(inst)
	b.AddPred(thenBlk, b.CurrentBlock())
	b.AddPred(elseBlk, b.CurrentBlock())
}

// BrTable appends an indirect branch through a jump table of block targets, selected
// by index. Wasm's br_table requires every target to share one operand arity
// (§4.2), so the same args vector is supplied to every edge.
func (b *Builder) BrTable(index ValueID, targets []BlockID, args []ValueID) {
	inst := b.alloc()
	inst.opcode = OpcodeBrTable
	inst.arg0 = index
	inst.targets = append([]BlockID(nil), targets...)
	inst.blockArgs = make([][]ValueID, len(targets))
	for i := range targets {
		inst.blockArgs[i] = args
	}
	b.insert(inst)
	cur := b.CurrentBlock()
	for _, t := range targets {
		b.AddPred(t, cur)
	}
}

// Call appends a direct call through a FuncRef, returning up to two result values
// (the ABI's two result registers, §4.9); the second is ValueInvalid if unused.
func (b *Builder) Call(ref FuncRefID, sig SignatureID, args []ValueID, results []Type) (ValueID, ValueID) {
	inst := b.alloc()
	inst.opcode = OpcodeCall
	inst.callTarget = ref
	inst.callSig = sig
	inst.args = args
	b.insert(inst)
	return b.callResults(inst, results)
}

// CallIndirect appends a call through a function-pointer value.
func (b *Builder) CallIndirect(callee ValueID, sig SignatureID, args []ValueID, results []Type) (ValueID, ValueID) {
	inst := b.alloc()
	inst.opcode = OpcodeCallIndirect
	inst.indirectFunc = callee
	inst.callSig = sig
	inst.args = args
	b.insert(inst)
	return b.callResults(inst, results)
}

func (b *Builder) callResults(inst *Instruction, results []Type) (ValueID, ValueID) {
	switch len(results) {
	case 0:
		return ValueInvalid, ValueInvalid
	case 1:
		v := b.f.allocateValue(results[0])
		b.f.values[v-1].def = inst
		inst.result0 = v
		return v, ValueInvalid
	case 2:
		v0 := b.f.allocateValue(results[0])
		b.f.values[v0-1].def = inst
		v1 := b.f.allocateValue(results[1])
		b.f.values[v1-1].def = inst
		inst.result0, inst.result1 = v0, v1
		return v0, v1
	default:
		panic(fmt.Sprintf("BUG: calls may return at most 2 values directly, got %d", len(results)))
	}
}

// Return appends a return instruction.
func (b *Builder) Return(args []ValueID) {
	inst := b.alloc()
	inst.opcode = OpcodeReturn
	inst.args = args
	b.insert(inst)
}

// Trap appends a trap instruction (used by unowned_load_strong when the deiniting
// flag is set, §4.8.1).
func (b *Builder) Trap() {
	inst := b.alloc()
	inst.opcode = OpcodeTrap
	b.insert(inst)
}

// DeclareSignature registers an external signature and returns its id (§4.1).
func (b *Builder) DeclareSignature(sig *Signature) SignatureID {
	id := b.f.nextSigID
	b.f.nextSigID++
	sig.ID = id
	b.f.signatures[id] = sig
	return id
}

// DeclareFuncRef registers an external function reference (colocated or not) and
// returns its id (§4.1).
func (b *Builder) DeclareFuncRef(name string, sig SignatureID, colocated bool) FuncRefID {
	id := b.f.nextRefID
	b.f.nextRefID++
	b.f.funcRefs[id] = &FuncRef{ID: id, Name: name, Signature: sig, Colocated: colocated}
	return id
}

// Finalize validates that every branch target exists and every block is terminated,
// splits critical edges and lays the function out in reverse postorder (§9
// "Supplemented features": critical-edge splitting and RPO layout), then seals any
// block not yet sealed (§4.1 "Seal all blocks ... and finalize").
func (b *Builder) Finalize() error {
	for _, id := range b.f.blockOrder {
		blk := b.f.blocks.View(int(id))
		if blk.Terminator() == nil {
			return fmt.Errorf("clif: block %d is not terminated", id)
		}
	}
	for _, id := range b.f.blockOrder {
		blk := b.f.blocks.View(int(id))
		for i := blk.first; i != nil; i = i.next() {
			for _, t := range i.targets {
				if int(t) >= len(b.f.blockOrder) {
					return fmt.Errorf("clif: block %d branches to non-existent block %d", id, t)
				}
			}
			if i.opcode == OpcodeJump {
				if int(i.target) >= len(b.f.blockOrder) {
					return fmt.Errorf("clif: block %d jumps to non-existent block %d", id, i.target)
				}
			}
		}
	}
	b.f.SplitCriticalEdges()
	b.f.blockOrder = b.f.ReversePostOrder()
	b.SealAll()
	return nil
}
