package clif

// successors returns blk's terminator's branch targets in edge order, or nil if blk
// isn't terminated yet.
func (f *Function) successors(blk BlockID) []BlockID {
	term := f.Block(blk).Terminator()
	if term == nil {
		return nil
	}
	switch term.opcode {
	case OpcodeJump:
		return []BlockID{term.target}
	case OpcodeBrif, OpcodeBrTable:
		return term.targets
	default:
		return nil
	}
}

// SplitCriticalEdges inserts an empty trampoline block on every critical edge of f —
// an edge whose source block has more than one successor and whose destination has
// more than one predecessor — so that a later merge-point pass (e.g. a register
// allocator's shuffle phase, §4.4) always has a safe, edge-specific place to insert
// code: a move sequence spliced onto the end of a predecessor with several
// successors would run unconditionally no matter which edge is actually taken.
// Builder.Finalize calls this automatically before sealing the function.
//
// Grounded on wazero's ssa.Builder.LayoutBlocks/splitCriticalEdge (ssa/builder.go):
// same trampoline shape — a single unconditional jump carrying the edge's original
// block arguments — adapted to this package's plain BlockID successor/predecessor
// lists in place of wazevo's basicBlockPredecessorInfo bookkeeping.
func (f *Function) SplitCriticalEdges() {
	for _, pred := range append([]BlockID(nil), f.blockOrder...) {
		succs := f.successors(pred)
		if len(succs) < 2 {
			continue
		}
		term := f.Block(pred).Terminator()
		for edge, succ := range succs {
			if len(f.Block(succ).preds) < 2 {
				continue
			}
			f.splitCriticalEdge(pred, term, edge, succ)
		}
	}
}

// splitCriticalEdge allocates the trampoline block for one (pred, edge) -> succ edge:
// it retargets term's edge-th target at the trampoline, carries over that edge's
// original block arguments onto the trampoline's own jump to succ, and replaces
// pred's entry in succ's predecessor list with the trampoline in place — preserving
// succ.preds' index order, so any block parameter of succ keeps reading the same
// argument slot it always did.
func (f *Function) splitCriticalEdge(pred BlockID, term *Instruction, edge int, succ BlockID) {
	t := f.blocks.Allocate()
	id := BlockID(f.blocks.Allocated() - 1)
	t.id = id
	t.sealed = true
	t.preds = []BlockID{pred}

	args := term.blockArgs[edge]
	jmp := f.instrs.Allocate()
	jmp.opcode = OpcodeJump
	jmp.target = succ
	jmp.blockArgs = [][]ValueID{args}
	jmp.blk = id
	t.first, t.last = jmp, jmp

	if term.opcode == OpcodeJump {
		term.target = id
	} else {
		term.targets[edge] = id
	}
	term.blockArgs[edge] = nil

	succPreds := f.Block(succ).preds
	for i, p := range succPreds {
		if p == pred {
			succPreds[i] = id
			break
		}
	}

	f.insertBlockAfter(pred, id)
}

// insertBlockAfter splices id into the builder's block order immediately after
// `after`, so a trampoline block stays a fallthrough from the edge it splits —
// mirroring wazevo's placement of split-edge trampolines right after their source.
func (f *Function) insertBlockAfter(after, id BlockID) {
	for i, b := range f.blockOrder {
		if b == after {
			f.blockOrder = append(f.blockOrder, id)
			copy(f.blockOrder[i+2:], f.blockOrder[i+1:])
			f.blockOrder[i+1] = id
			return
		}
	}
	f.blockOrder = append(f.blockOrder, id)
}

// ReversePostOrder returns f's blocks in reverse postorder from the entry block
// (blockOrder's first entry), the order wazevo lays out compiled code in
// (ssa/basic_block_sort.go): it shortens average jump distances versus declaration
// order and gives a backward-dataflow consumer (e.g. a liveness pass, §4.3.3) a
// ready-made traversal order for free. Builder.Finalize reorders the function's
// blocks into this order as its last step, after critical edges are split.
func (f *Function) ReversePostOrder() []BlockID {
	if len(f.blockOrder) == 0 {
		return nil
	}
	visited := make(map[BlockID]bool, len(f.blockOrder))
	var post []BlockID
	var visit func(BlockID)
	visit = func(b BlockID) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range f.successors(b) {
			visit(s)
		}
		post = append(post, b)
	}
	visit(f.blockOrder[0])
	// Any block unreachable from the entry (shouldn't happen for valid input) is
	// still visited, so this never silently drops a declared block.
	for _, b := range f.blockOrder {
		visit(b)
	}
	rpo := make([]BlockID, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}
