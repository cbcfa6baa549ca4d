package clif

// BlockID identifies a Block within a Function.
type BlockID uint32

// Block is a CLIF basic block: an ordered list of typed parameters (the canonical SSA
// phi formulation, §3.1) followed by an ordered instruction list whose last element is
// always a terminator once the block is complete.
type Block struct {
	id     BlockID
	params []ValueID
	first  *Instruction
	last   *Instruction
	sealed bool
	// preds are filled in by the builder as predecessors are discovered, and consumed
	// by the liveness pass (§4.3.3) and the allocator's block-entry merge logic (§4.4).
	preds []BlockID
}

// ID returns this block's identifier.
func (b *Block) ID() BlockID { return b.id }

// Params returns this block's ordered parameter values.
func (b *Block) Params() []ValueID { return b.params }

// Preds returns the predecessor blocks recorded for this block so far.
func (b *Block) Preds() []BlockID { return b.preds }

// Sealed reports whether Builder.Seal has been called on this block.
func (b *Block) Sealed() bool { return b.sealed }

// Instructions returns the block's instructions in program order.
func (b *Block) Instructions() []*Instruction {
	var out []*Instruction
	for i := b.first; i != nil; i = i.next() {
		out = append(out, i)
	}
	return out
}

// Terminator returns the block's terminating instruction, or nil if the block is
// not yet terminated.
func (b *Block) Terminator() *Instruction {
	if b.last != nil && b.last.IsTerminator() {
		return b.last
	}
	return nil
}

func (b *Block) reset() {
	*b = Block{id: b.id}
}

// linked-list pointers live on Instruction itself (next/prev) so the block can append
// in O(1) without a separate slice; this mirrors wazevo's BasicBlock.InsertInstruction.
type linkedInstr struct {
	prevPtr, nextPtr *Instruction
}

func (i *Instruction) next() *Instruction { return i.link.nextPtr }
func (i *Instruction) prev() *Instruction { return i.link.prevPtr }
