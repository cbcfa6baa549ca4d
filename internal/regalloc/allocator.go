package regalloc

import "github.com/cot-lang/cotc/internal/lowerssa"

// valueState is the allocator's per-value bookkeeping (§4.4 "Key data per SSA value").
type valueState struct {
	reg          Reg
	inReg        bool
	spillSlot    bool
	spillUsed    bool
	uses         *lowerssa.UseRecord
	remat        bool
	needsReg     bool
}

// regState is the allocator's per-physical-register bookkeeping.
type regState struct {
	occupant *lowerssa.Value
	dirty    bool
}

// Allocator runs the linear-scan pass of §4.4 over a lowerssa.Func.
type Allocator struct {
	target Target
	states map[*lowerssa.Value]*valueState
	regs   [32]regState

	// endState is recorded per block for seeding successors (§3.3 "End-of-block state").
	endState map[*lowerssa.Block]map[Reg]*lowerssa.Value

	processed map[*lowerssa.Block]bool

	// SpillLive is populated per block as values are spilled while processing it, for
	// consumption by the stack allocator's interference graph (§4.5 step 1).
	SpillLive map[*lowerssa.Block]map[*lowerssa.Value]bool

	nextCall map[*lowerssa.Block][]int
}

// NewAllocator returns an Allocator configured for the given architecture Target.
func NewAllocator(target Target) *Allocator {
	return &Allocator{
		target:    target,
		states:    make(map[*lowerssa.Value]*valueState),
		endState:  make(map[*lowerssa.Block]map[Reg]*lowerssa.Value),
		processed: make(map[*lowerssa.Block]bool),
		SpillLive: make(map[*lowerssa.Block]map[*lowerssa.Value]bool),
	}
}

// Run allocates registers for every value in f, inserting reload/spill markers as
// lowerssa Values (OpLoadReg/OpStoreReg) and shuffle copies (OpCopy) at block merges.
// nextCall is the per-block "next call at or after index i" table from
// lowerssa.ComputeLiveness.
func (a *Allocator) Run(f *lowerssa.Func, nextCall map[*lowerssa.Block][]int) {
	a.nextCall = nextCall
	order := reversePostOrder(f)
	for _, blk := range order {
		a.processBlock(f, blk)
	}
	a.resolveShuffles(f, order)
	a.finalizeHomes(f)
}

// finalizeHomes writes each value's last-known allocator disposition into its
// lowerssa.Value.Home (§3.2: "a home (a register number or a stack offset, assigned
// by allocation)"). A value that was ever spilled gets its stack disposition filled
// in later, by the stack allocator; here it is left Assigned=false so a lowering
// pass can tell "never left a register" apart from "needs a stack slot".
func (a *Allocator) finalizeHomes(f *lowerssa.Func) {
	for _, blk := range f.Blocks {
		for _, v := range blk.Values {
			st, ok := a.states[v]
			if !ok {
				continue
			}
			if st.inReg {
				v.Home = lowerssa.ValueHome{InReg: true, Reg: uint8(st.reg), Assigned: true}
			}
		}
	}
}

// RegOf returns the physical register v currently occupies at the point its
// allocation finished, and true, if it was never spilled out of one. A spilled
// value (ok=false) needs its stack slot from stackalloc.Frame instead.
func (a *Allocator) RegOf(v *lowerssa.Value) (Reg, bool) {
	st, ok := a.states[v]
	if !ok || !st.inReg {
		return NoReg, false
	}
	return st.reg, true
}

// Spilled reports whether v was ever evicted to a stack slot during allocation
// (§4.4 "spill_used flag"), i.e. whether stackalloc.Allocate will have assigned it
// an offset via the SpillLive records this Allocator produced.
func (a *Allocator) Spilled(v *lowerssa.Value) bool {
	st, ok := a.states[v]
	return ok && st.spillSlot
}

func reversePostOrder(f *lowerssa.Func) []*lowerssa.Block {
	po := f.PostOrder()
	rpo := make([]*lowerssa.Block, len(po))
	for i, b := range po {
		rpo[len(po)-1-i] = b
	}
	return rpo
}

func (a *Allocator) stateOf(v *lowerssa.Value) *valueState {
	s, ok := a.states[v]
	if !ok {
		s = &valueState{
			reg:      NoReg,
			remat:    v.Op.IsRematerializable(),
			needsReg: v.Op.NeedsRegister(),
			uses:     v.Uses,
		}
		a.states[v] = s
	}
	return s
}

// processBlock implements §4.4's "Block processing" steps 1-6.
func (a *Allocator) processBlock(f *lowerssa.Func, blk *lowerssa.Block) {
	// Step 1: seed register state from a processed predecessor, if any.
	if len(blk.Preds) > 0 {
		for _, pred := range blk.Preds {
			if end, ok := a.endState[pred]; ok {
				for r, v := range end {
					a.regs[r] = regState{occupant: v}
					a.stateOf(v).reg = r
					a.stateOf(v).inReg = true
				}
				break
			}
		}
	}

	a.SpillLive[blk] = make(map[*lowerssa.Value]bool)

	// Step 2: allocate phi results, preferring the primary predecessor's incoming
	// register.
	for _, v := range blk.Values {
		if v.Op != lowerssa.OpPhi {
			continue
		}
		if len(v.Args) > 0 {
			if src := a.stateOf(v.Args[0]); src.inReg {
				a.assignReg(v, src.reg)
				continue
			}
		}
		a.allocateRegister(f, blk, v, v)
	}

	// Steps 3-4: walk values top-to-bottom.
	next := a.nextCall[blk]
	for i, v := range blk.Values {
		if v.Op == lowerssa.OpPhi {
			continue
		}

		for _, arg := range v.Args {
			st := a.stateOf(arg)
			if !st.inReg && !st.remat {
				reg := a.allocateRegister(f, blk, v, arg)
				a.emitReload(f, blk, v, arg, reg)
			} else if !st.inReg && st.remat {
				reg := a.allocateRegister(f, blk, v, arg)
				a.emitRemat(f, blk, v, arg, reg)
			}
		}

		if v.Op.IsCall() {
			a.spillCallerSaved(f, blk, v)
		}

		a.applyFixedConstraint(f, blk, v)

		if v.Op.NeedsRegister() {
			pref, ok := a.preferredRegister(v)
			if ok {
				a.assignReg(v, pref)
			} else if !a.stateOf(v).inReg {
				a.allocateRegister(f, blk, v, v)
			}
		}

		// Step 4 tail: free an argument's register immediately if its next use lies
		// beyond the next call (we'd have to spill across the call anyway).
		for _, arg := range v.Args {
			st := a.stateOf(arg)
			if !st.inReg || st.uses == nil {
				continue
			}
			nextUseIdx := i + st.uses.Distance
			if next[i] >= 0 && nextUseIdx > next[i] {
				a.freeRegister(st.reg)
				st.inReg = false
			}
			if st.uses != nil {
				st.uses = st.uses.Next
			}
		}
	}

	// Step 5: save end-of-block state for successor seeding.
	end := make(map[Reg]*lowerssa.Value)
	for r := 0; r < a.target.NumRegs; r++ {
		if occ := a.regs[r].occupant; occ != nil {
			end[Reg(r)] = occ
		}
	}
	a.endState[blk] = end
	a.processed[blk] = true
}

// preferredRegister returns the argument-convention register for arg-receiving
// values, or the return register for calls (§4.4 step 4, "Allocate an output register").
func (a *Allocator) preferredRegister(v *lowerssa.Value) (Reg, bool) {
	switch v.Op {
	case lowerssa.OpArg:
		idx := int(v.Aux)
		if idx >= 0 && idx < len(a.target.ArgRegs) {
			return a.target.ArgRegs[idx], true
		}
	case lowerssa.OpStaticCall, lowerssa.OpClosureCall:
		if len(a.target.ReturnRegs) > 0 {
			return a.target.ReturnRegs[0], true
		}
	}
	return NoReg, false
}

// allocateRegister finds a free register for v, evicting the occupant with the
// furthest next use if none are free (§4.4 "Spill selection"), and marks v as
// occupying it. before is the instruction site a spill-store, if one is needed,
// is inserted ahead of.
func (a *Allocator) allocateRegister(f *lowerssa.Func, blk *lowerssa.Block, before, v *lowerssa.Value) Reg {
	if r, ok := a.target.Allocatable.FirstFree(func(r Reg) bool { return a.regs[r].occupant != nil }); ok {
		a.assignReg(v, r)
		return r
	}
	victim := a.selectSpillVictim()
	a.spillValue(f, blk, before, victim)
	a.assignReg(v, victim)
	return victim
}

// selectSpillVictim implements Belady's rule: evict the occupant whose next use is
// furthest away, breaking ties by lower register number (§4.4 "Spill selection").
func (a *Allocator) selectSpillVictim() Reg {
	best := Reg(0)
	bestDist := -1
	for r := Reg(0); int(r) < a.target.NumRegs; r++ {
		if !a.target.Allocatable.Has(r) {
			continue
		}
		occ := a.regs[r].occupant
		if occ == nil {
			continue
		}
		st := a.stateOf(occ)
		dist := lowerssa.DistanceUnknown
		if st.uses != nil {
			dist = st.uses.Distance
		}
		if dist > bestDist {
			bestDist = dist
			best = r
		}
	}
	return best
}

func (a *Allocator) assignReg(v *lowerssa.Value, r Reg) {
	a.regs[r] = regState{occupant: v, dirty: true}
	st := a.stateOf(v)
	st.reg = r
	st.inReg = true
}

func (a *Allocator) freeRegister(r Reg) {
	if r == NoReg {
		return
	}
	a.regs[r] = regState{}
}

// spillValue materializes v's spill marker unless it is rematerializable, in which
// case it is simply freed (§4.4 "Rematerializable values never spill"). A materialized
// spill inserts a real OpStoreReg value ahead of `before`, carrying the register it
// is written from in Aux, so a lowering pass has an actual instruction to select
// machine code for instead of only bookkeeping (§3.2 Value opcode "store_reg (spill
// marker)").
func (a *Allocator) spillValue(f *lowerssa.Func, blk *lowerssa.Block, before *lowerssa.Value, victim Reg) {
	occ := a.regs[victim].occupant
	if occ == nil {
		return
	}
	st := a.stateOf(occ)
	if !st.remat {
		st.spillSlot = true
		store := f.InsertNewValueBefore(blk, before, lowerssa.OpStoreReg, occ.Type, occ)
		store.Aux = int64(victim)
		if a.SpillLive[blk] == nil {
			a.SpillLive[blk] = make(map[*lowerssa.Value]bool)
		}
		a.SpillLive[blk][occ] = true
	}
	st.inReg = false
	a.regs[victim] = regState{}
}

// emitReload inserts an OpLoadReg marker before use, standing in for `arg` at that
// use site (§4.4 step 3, "update the argument's SSA reference to the reload value").
func (a *Allocator) emitReload(f *lowerssa.Func, blk *lowerssa.Block, before, arg *lowerssa.Value, reg Reg) {
	st := a.stateOf(arg)
	st.spillUsed = true
	reload := f.InsertNewValueBefore(blk, before, lowerssa.OpLoadReg, arg.Type, arg)
	a.states[reload] = &valueState{reg: reg, inReg: true}
	lowerssa.ReplaceArg(before, arg, reload)
}

// emitRemat inserts a fresh recomputation of a rematerializable value instead of a
// reload, since such values are never spilled (§4.4 "Rematerializable values").
func (a *Allocator) emitRemat(f *lowerssa.Func, blk *lowerssa.Block, before, arg *lowerssa.Value, reg Reg) {
	clone := f.InsertNewValueBefore(blk, before, arg.Op, arg.Type)
	clone.Aux = arg.Aux
	clone.AuxTag = arg.AuxTag
	a.states[clone] = &valueState{reg: reg, inReg: true, remat: true}
	lowerssa.ReplaceArg(before, arg, clone)
}

// applyFixedConstraint forces an instruction's first argument and result into the
// architecture-mandated registers, if the Target declares one for this opcode (§4.4
// "architecture-specific instructions", e.g. AMD64 IDIV's RAX:RDX pair or a shift's
// RCX count register). It evicts whatever currently occupies the fixed registers
// first, then pins the argument/result there.
func (a *Allocator) applyFixedConstraint(f *lowerssa.Func, blk *lowerssa.Block, v *lowerssa.Value) {
	if a.target.FixedConstraint == nil || len(v.Args) == 0 {
		return
	}
	lhsReg, outReg, ok := a.target.FixedConstraint(v.Op.String())
	if !ok {
		return
	}
	if lhsReg != NoReg {
		lhs := v.Args[0]
		if occ := a.regs[lhsReg].occupant; occ != nil && occ != lhs {
			a.spillValue(f, blk, v, lhsReg)
		}
		st := a.stateOf(lhs)
		if st.inReg && st.reg != lhsReg {
			a.freeRegister(st.reg)
			st.inReg = false
		}
		if !st.inReg {
			a.assignReg(lhs, lhsReg)
		}
	}
	if outReg != NoReg {
		if occ := a.regs[outReg].occupant; occ != nil && occ != v {
			a.spillValue(f, blk, v, outReg)
		}
		a.assignReg(v, outReg)
	}
}

// spillCallerSaved spills every caller-saved register occupant before a call
// instruction (§4.4 step 4, "spill all caller-saved registers before the call").
func (a *Allocator) spillCallerSaved(f *lowerssa.Func, blk *lowerssa.Block, call *lowerssa.Value) {
	for r := Reg(0); int(r) < a.target.NumRegs; r++ {
		if !a.target.CallerSaved.Has(r) {
			continue
		}
		if a.regs[r].occupant != nil {
			a.spillValue(f, blk, call, r)
		}
	}
}

// regMove is one sequentialized step of a parallel-copy resolution: either an
// ordinary register-to-register copy, or (when src == dst's own temp slot) a copy
// out of the reserved SpillTemp used to break a cycle.
type regMove struct {
	dst, src Reg
}

// resolveShuffles implements §4.4's "Shuffle phase": at each edge into a block with
// phi values, the predecessor's end-of-block register assignment may disagree with
// the phi result's assigned register, requiring a parallel register-to-register copy
// sequence inserted on that edge.
//
// The edge has two safe homes for that sequence: just before the predecessor's
// terminator, or just before the successor's first value. The former is only safe
// when the predecessor has a single successor — otherwise the copies would run
// unconditionally on every outgoing edge, corrupting registers live into the
// branches that aren't this one. lowerssa.SplitCriticalEdges (run by the ISA lowering
// pipeline ahead of Run, §9's supplemented critical-edge splitting) guarantees that
// whenever the predecessor has more than one successor, this successor has exactly
// one predecessor, so the latter home is always available and always unambiguous.
func (a *Allocator) resolveShuffles(f *lowerssa.Func, order []*lowerssa.Block) {
	for _, blk := range order {
		for _, succ := range blk.Succs {
			moves := a.collectPhiMoves(blk, succ)
			if len(moves) == 0 {
				continue
			}
			if len(blk.Succs) == 1 {
				a.emitShuffle(f, blk, blk.Terminator(), moves)
			} else {
				var before *lowerssa.Value
				if len(succ.Values) > 0 {
					before = succ.Values[0]
				}
				a.emitShuffle(f, succ, before, moves)
			}
		}
	}
}

// collectPhiMoves builds the dst-register -> src-register map implied by succ's phi
// values for the blk->succ edge, skipping phis whose argument is already in the
// target register.
func (a *Allocator) collectPhiMoves(blk, succ *lowerssa.Block) map[Reg]Reg {
	moves := make(map[Reg]Reg)
	for _, v := range succ.Values {
		if v.Op != lowerssa.OpPhi {
			continue
		}
		for i, pred := range succ.Preds {
			if pred != blk || i >= len(v.Args) {
				continue
			}
			arg := v.Args[i]
			dstSt, srcSt := a.stateOf(v), a.stateOf(arg)
			if dstSt.inReg && srcSt.inReg && dstSt.reg != srcSt.reg {
				moves[dstSt.reg] = srcSt.reg
			}
		}
	}
	return moves
}

// emitShuffle sequentializes the parallel-copy set `moves` (dst register -> src
// register) into an ordered list of simple copies, breaking any cycles with the
// Target's reserved SpillTemp register, per §4.4's description of shuffle-move
// insertion at block merges. The copies are spliced into insertBlk immediately
// before `before` (or appended to insertBlk's end if before is nil).
func (a *Allocator) emitShuffle(f *lowerssa.Func, insertBlk *lowerssa.Block, before *lowerssa.Value, moves map[Reg]Reg) {
	pending := make(map[Reg]Reg, len(moves))
	for d, s := range moves {
		pending[d] = s
	}
	loc := make(map[Reg]Reg)
	for d, s := range pending {
		loc[d] = d
		loc[s] = s
	}

	isSrc := func(r Reg) bool {
		for _, s := range pending {
			if s == r {
				return true
			}
		}
		return false
	}

	var ready []Reg
	for d := range pending {
		if !isSrc(d) {
			ready = append(ready, d)
		}
	}

	var seq []regMove
	for len(pending) > 0 {
		for len(ready) > 0 {
			d := ready[len(ready)-1]
			ready = ready[:len(ready)-1]
			s, ok := pending[d]
			if !ok {
				continue
			}
			seq = append(seq, regMove{dst: d, src: loc[s]})
			loc[s] = d
			delete(pending, d)
			if _, stillPending := pending[s]; stillPending && !isSrc(s) {
				ready = append(ready, s)
			}
		}
		if len(pending) == 0 {
			break
		}
		// What's left is one or more cycles. Break the first by routing its value
		// through SpillTemp, then resume the ready-list walk from the freed node.
		var d Reg
		for k := range pending {
			d = k
			break
		}
		s := pending[d]
		seq = append(seq, regMove{dst: a.target.SpillTemp, src: loc[s]})
		loc[s] = a.target.SpillTemp
		ready = append(ready, d)
	}

	for _, mv := range seq {
		cp := f.InsertNewValueBefore(insertBlk, before, lowerssa.OpCopy, 0)
		cp.Aux = int64(mv.src)
		cp.Home = lowerssa.ValueHome{InReg: true, Reg: uint8(mv.dst), Assigned: true}
	}
}
