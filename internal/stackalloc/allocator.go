// Package stackalloc assigns concrete stack-frame offsets to locals and to
// register-allocator spill slots (§4.5), reusing a slot across non-interfering spill
// values via a greedy graph coloring built on the register allocator's per-block
// spill-liveness records.
package stackalloc

import (
	"sort"

	"github.com/samber/lo"

	"github.com/cot-lang/cotc/internal/heap"
	"github.com/cot-lang/cotc/internal/lowerssa"
)

// Local describes a front-end-declared local slot, laid out in declaration order
// ahead of any spill slots so the front end can keep using fixed indices into it.
type Local struct {
	Name  string
	Size  int64
	Align int64
}

// Frame is the finished stack layout: every local and spill value's byte offset
// from the frame base, plus the 16-byte-aligned total size (§3.5, §4.5 guarantee 2).
type Frame struct {
	LocalOffsets map[string]int64
	SlotOffsets  map[*lowerssa.Value]int64
	Size         int64
}

// headerSize is the space reserved for the saved frame pointer / link register
// pair at the foot of every frame (§3.5), shared with heap.FrameAlignment.
const headerSize = int64(heap.FrameAlignment)

// Allocate runs the four-step process of §4.5 over a function's blocks, the set of
// values the register allocator spilled (spillLive, keyed the way
// regalloc.Allocator.SpillLive is: per block, the spill values live across it), and
// the front end's locals.
func Allocate(blocks []*lowerssa.Block, spillLive map[*lowerssa.Block]map[*lowerssa.Value]bool, locals []Local) *Frame {
	liveBlocks := backPropagateLiveBlocks(blocks, spillLive)
	interference := buildInterferenceGraph(liveBlocks)
	order := definitionOrder(blocks, liveBlocks)
	slotOf, slotSize := colorSlots(order, interference)

	offset := headerSize
	localOffsets := make(map[string]int64, len(locals))
	for _, l := range locals {
		offset = alignUp(offset, l.Align)
		localOffsets[l.Name] = offset
		offset += l.Size
	}

	slotOffsets := make(map[int]int64, len(slotSize))
	var slotIDs []int
	for id := range slotSize {
		slotIDs = append(slotIDs, id)
	}
	sort.Ints(slotIDs)
	for _, id := range slotIDs {
		offset = alignUp(offset, 8)
		slotOffsets[id] = offset
		offset += slotSize[id]
	}

	valueOffsets := make(map[*lowerssa.Value]int64, len(slotOf))
	for v, id := range slotOf {
		valueOffsets[v] = slotOffsets[id]
	}

	return &Frame{
		LocalOffsets: localOffsets,
		SlotOffsets:  valueOffsets,
		Size:         heap.AlignFrameSize(offset),
	}
}

func alignUp(off, align int64) int64 {
	if align <= 1 {
		return off
	}
	return (off + align - 1) &^ (align - 1)
}

// backPropagateLiveBlocks implements §4.5 step 1: starting from each block's
// recorded spill-live set, walk predecessors backward so a value is considered live
// in every block on a path between its spill point and a use, not merely the block
// it was spilled in.
func backPropagateLiveBlocks(blocks []*lowerssa.Block, spillLive map[*lowerssa.Block]map[*lowerssa.Value]bool) map[*lowerssa.Value]map[*lowerssa.Block]bool {
	live := make(map[*lowerssa.Value]map[*lowerssa.Block]bool)
	addLive := func(v *lowerssa.Value, blk *lowerssa.Block) bool {
		m, ok := live[v]
		if !ok {
			m = make(map[*lowerssa.Block]bool)
			live[v] = m
		}
		if m[blk] {
			return false
		}
		m[blk] = true
		return true
	}

	for blk, vs := range spillLive {
		for v := range vs {
			addLive(v, blk)
		}
	}

	changed := true
	for changed {
		changed = false
		for _, blk := range blocks {
			for v, blocksForV := range live {
				if !blocksForV[blk] {
					continue
				}
				if v.Block() == blk {
					continue // definitions don't propagate further backward
				}
				for _, pred := range blk.Preds {
					if addLive(v, pred) {
						changed = true
					}
				}
			}
		}
	}
	return live
}

// buildInterferenceGraph implements §4.5 step 2: two spill values interfere if they
// are both live in some common block. Built with lo.Uniq so the
// block->values index (and each value's neighbor set) never holds duplicates.
func buildInterferenceGraph(live map[*lowerssa.Value]map[*lowerssa.Block]bool) map[*lowerssa.Value]map[*lowerssa.Value]bool {
	var valuesInBlock = make(map[*lowerssa.Block][]*lowerssa.Value)
	for v, blocks := range live {
		for blk := range blocks {
			valuesInBlock[blk] = append(valuesInBlock[blk], v)
		}
	}

	interferes := make(map[*lowerssa.Value]map[*lowerssa.Value]bool, len(live))
	for v := range live {
		interferes[v] = make(map[*lowerssa.Value]bool)
	}
	for _, vs := range valuesInBlock {
		uniq := lo.Uniq(vs)
		for i, a := range uniq {
			for _, b := range uniq[i+1:] {
				interferes[a][b] = true
				interferes[b][a] = true
			}
		}
	}
	return interferes
}

// definitionOrder returns the spill-needing values that appeared in `live`,
// ordered the way they're defined across the function (§4.5 step 3, "walk values in
// definition order").
func definitionOrder(blocks []*lowerssa.Block, live map[*lowerssa.Value]map[*lowerssa.Block]bool) []*lowerssa.Value {
	var order []*lowerssa.Value
	for _, blk := range blocks {
		for _, v := range blk.Values {
			if _, ok := live[v]; ok {
				order = append(order, v)
			}
		}
	}
	return order
}

// colorSlots implements §4.5 step 3's greedy coloring: for each value (in
// definition order), reuse the lowest-numbered slot of matching byte size whose
// current occupant set doesn't interfere with this value, or open a new slot.
// Grouped by size with lo.GroupBy so two values of different width are never
// forced to share a slot.
func colorSlots(order []*lowerssa.Value, interferes map[*lowerssa.Value]map[*lowerssa.Value]bool) (map[*lowerssa.Value]int, map[int]int64) {
	bySize := lo.GroupBy(order, func(v *lowerssa.Value) int64 { return slotSizeFor(v) })

	slotOf := make(map[*lowerssa.Value]int)
	slotSize := make(map[int]int64)
	nextSlot := 0

	for size, values := range bySize {
		type slot struct {
			id        int
			occupants []*lowerssa.Value
		}
		var slots []*slot
		for _, v := range values {
			placed := false
			for _, s := range slots {
				if interferesWithAny(interferes, v, s.occupants) {
					continue
				}
				s.occupants = append(s.occupants, v)
				slotOf[v] = s.id
				placed = true
				break
			}
			if !placed {
				id := nextSlot
				nextSlot++
				slots = append(slots, &slot{id: id, occupants: []*lowerssa.Value{v}})
				slotOf[v] = id
				slotSize[id] = size
			}
		}
	}
	return slotOf, slotSize
}

func interferesWithAny(interferes map[*lowerssa.Value]map[*lowerssa.Value]bool, v *lowerssa.Value, occupants []*lowerssa.Value) bool {
	for _, o := range occupants {
		if interferes[v][o] {
			return true
		}
	}
	return false
}

// slotSizeFor is the spill-slot byte size for a value: 8 bytes for every
// post-decomposition scalar (strings have already been split into separate
// pointer/length values by the time spill candidates reach here, §4.3.1).
func slotSizeFor(v *lowerssa.Value) int64 {
	return 8
}
