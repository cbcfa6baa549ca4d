package lowerssa

// ComputeLiveness runs the backward dataflow of §4.3.3 to a fixed point over blocks
// in postorder, populating each Value's Uses list (ordered by distance from the
// current scheduling point) and each Block's LiveOut set. It also returns, per
// instruction index within its block, the index of the next call at or after that
// point (or -1), consulted by the allocator when deciding whether a freshly loaded
// value will survive a call intact.
func ComputeLiveness(f *Func) map[*Block][]int {
	order := f.PostOrder()

	for _, blk := range f.Blocks {
		blk.LiveOut = make(map[*Value]int)
	}

	changed := true
	for changed {
		changed = false
		for _, blk := range order {
			live := seedFromSuccessors(blk)
			addControlValuesAndPhiArgs(blk, live)
			walkBlockBackward(blk, live)
			changed = propagateToPreds(blk, live) || changed
		}
	}

	nextCall := make(map[*Block][]int, len(f.Blocks))
	for _, blk := range f.Blocks {
		nextCall[blk] = computeNextCall(blk)
	}
	return nextCall
}

// seedFromSuccessors initializes a working live set from the block's current
// LiveOut, per §4.3.3 step 1.
func seedFromSuccessors(blk *Block) map[*Value]int {
	live := make(map[*Value]int, len(blk.LiveOut))
	for v, d := range blk.LiveOut {
		live[v] = d
	}
	return live
}

// addControlValuesAndPhiArgs implements §4.3.3 steps 2-4: add phi/block-param
// arguments supplied to successors at edge positions, bump every live value's
// distance by the block length (their uses are at least that far away), and add the
// block's own control (terminator) values as live at distance = block length.
func addControlValuesAndPhiArgs(blk *Block, live map[*Value]int) {
	n := len(blk.Values)
	for _, succ := range blk.Succs {
		for _, v := range succ.Values {
			if v.Op != OpPhi {
				continue
			}
			for i, pred := range succ.Preds {
				if pred == blk && i < len(v.Args) {
					bumpOrSet(live, v.Args[i], n)
				}
			}
		}
	}
	for v := range live {
		live[v] += n
	}
	if term := blk.Terminator(); term != nil {
		for _, a := range term.Args {
			bumpOrSet(live, a, n)
		}
	}
}

// walkBlockBackward implements §4.3.3 step 5: walk values bottom-up, removing each
// definition from the live set (it dies before this point), applying the call
// penalty to everything still live across a call, and adding the instruction's own
// arguments to the live set at their position (distance = index from block end).
func walkBlockBackward(blk *Block, live map[*Value]int) {
	for i := len(blk.Values) - 1; i >= 0; i-- {
		v := blk.Values[i]
		dist, wasLive := live[v]
		if wasLive {
			prependUse(v, dist, v.SrcPos)
		}
		delete(live, v)

		if v.Op.IsCall() {
			for other := range live {
				live[other] += DistanceUnlikelyOrCall
			}
		}

		posFromEnd := len(blk.Values) - i
		for _, a := range v.Args {
			bumpOrSet(live, a, posFromEnd)
			prependUse(a, posFromEnd, v.SrcPos)
		}
	}
}

// propagateToPreds implements §4.3.3 step 6: for each predecessor, merge this
// block's live-in (the surviving `live` map after the backward walk) into the
// predecessor's LiveOut at the appropriate edge distance, keeping the closer
// distance on conflict. Returns true if any predecessor's LiveOut changed.
func propagateToPreds(blk *Block, live map[*Value]int) bool {
	changed := false
	edgeDistance := DistanceNormal
	for _, pred := range blk.Preds {
		if pred.LikelySucc == blk {
			edgeDistance = DistanceLikely
		} else if len(pred.Succs) > 1 {
			edgeDistance = DistanceUnlikelyOrCall
		} else {
			edgeDistance = DistanceNormal
		}
		for v, d := range live {
			nd := d + edgeDistance
			if cur, ok := pred.LiveOut[v]; !ok || nd < cur {
				pred.LiveOut[v] = nd
				changed = true
			}
		}
	}
	return changed
}

func bumpOrSet(live map[*Value]int, v *Value, dist int) {
	if cur, ok := live[v]; !ok || dist < cur {
		live[v] = dist
	}
}

func prependUse(v *Value, distance int, srcPos int32) {
	v.Uses = &UseRecord{Distance: distance, SrcPos: srcPos, Next: v.Uses}
}

// computeNextCall returns, for each index i in blk.Values, the index of the next
// call at or after i, or -1 if there is none in this block.
func computeNextCall(blk *Block) []int {
	out := make([]int, len(blk.Values))
	next := -1
	for i := len(blk.Values) - 1; i >= 0; i-- {
		if blk.Values[i].Op.IsCall() {
			next = i
		}
		out[i] = next
	}
	return out
}
