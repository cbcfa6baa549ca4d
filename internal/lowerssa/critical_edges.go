package lowerssa

// SplitCriticalEdges inserts an empty trampoline block on every critical edge of f —
// an edge whose source has more than one successor and whose destination has more
// than one predecessor (§9's supplemented "critical-edge splitting"). It must run
// before the register allocator's shuffle phase (§4.4): without it, a phi-resolving
// copy sequence for one successor has nowhere unambiguous to live when its
// predecessor branches to more than one block, since inserting it at the
// predecessor's end would run it on every outgoing edge instead of just the one the
// phi belongs to.
//
// Grounded on clif.Function.SplitCriticalEdges, itself grounded on wazero's
// ssa.Builder.splitCriticalEdge (ssa/builder.go) and basicBlockPredecessorInfo
// (ssa/pass_cfg.go); adapted here from clif's BlockID/predecessor-index model to
// lowerssa's direct *Block Preds/Succs pointers.
func SplitCriticalEdges(f *Func) {
	// Snapshot blocks since splitting appends new ones to f.Blocks.
	blocks := append([]*Block(nil), f.Blocks...)
	for _, blk := range blocks {
		if len(blk.Succs) <= 1 {
			continue
		}
		for i, succ := range blk.Succs {
			if len(succ.Preds) <= 1 {
				continue
			}
			f.splitCriticalEdge(blk, succ, i)
		}
	}
}

// splitCriticalEdge replaces the blk->succ edge (blk.Succs[succIdx] == succ) with
// blk->trampoline->succ, preserving succ's predecessor-index order so any phi
// argument vector indexed by that order stays valid — the trampoline simply inherits
// the slot blk used to occupy.
func (f *Func) splitCriticalEdge(blk, succ *Block, succIdx int) {
	trampoline := f.NewBlock()
	trampoline.Preds = []*Block{blk}
	trampoline.Succs = []*Block{succ}
	jump := f.NewValue(trampoline, OpJump, TypeID(0))
	_ = jump

	blk.Succs[succIdx] = trampoline
	if blk.LikelySucc == succ {
		blk.LikelySucc = trampoline
	}

	for i, p := range succ.Preds {
		if p == blk {
			succ.Preds[i] = trampoline
			break
		}
	}
}
