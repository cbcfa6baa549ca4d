package stackalloc

import (
	"testing"

	"github.com/cot-lang/cotc/internal/lowerssa"
	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestAllocateNonInterferingSpillsShareASlot(t *testing.T) {
	f := lowerssa.NewFunc("f", lowerssa.BasicTypeRegistry{I64Type: 1})
	blk1 := f.NewBlock()
	blk2 := f.NewBlock()

	a := f.NewValue(blk1, lowerssa.OpConstInt, 1)
	f.NewValue(blk1, lowerssa.OpReturn, 1, a)
	b := f.NewValue(blk2, lowerssa.OpConstInt, 1)
	f.NewValue(blk2, lowerssa.OpReturn, 1, b)

	// a and b are spilled in disjoint, unrelated blocks: their live-block sets never
	// intersect, so one slot should serve both.
	spillLive := map[*lowerssa.Block]map[*lowerssa.Value]bool{
		blk1: {a: true},
		blk2: {b: true},
	}

	frame := Allocate(f.Blocks, spillLive, nil)
	require.Equal(t, frame.SlotOffsets[a], frame.SlotOffsets[b])
}

func TestAllocateInterferingSpillsGetDistinctSlots(t *testing.T) {
	f := lowerssa.NewFunc("f", lowerssa.BasicTypeRegistry{I64Type: 1})
	entry := f.NewBlock()
	other := f.NewBlock()
	entry.Succs = []*lowerssa.Block{other}
	other.Preds = []*lowerssa.Block{entry}

	a := f.NewValue(entry, lowerssa.OpConstInt, 1)
	b := f.NewValue(entry, lowerssa.OpConstInt, 1)
	f.NewValue(entry, lowerssa.OpJump, 1)
	f.NewValue(other, lowerssa.OpAdd, 1, a, b)
	f.NewValue(other, lowerssa.OpReturn, 1, a)

	// Both a and b are live across the same block (other): they interfere.
	spillLive := map[*lowerssa.Block]map[*lowerssa.Value]bool{
		other: {a: true, b: true},
	}

	frame := Allocate(f.Blocks, spillLive, nil)
	require.NotEqual(t, frame.SlotOffsets[a], frame.SlotOffsets[b])
}

func TestAllocateLocalsPrecedeSpillSlotsAndFrameIsAligned(t *testing.T) {
	f := lowerssa.NewFunc("f", lowerssa.BasicTypeRegistry{I64Type: 1})
	blk := f.NewBlock()
	v := f.NewValue(blk, lowerssa.OpConstInt, 1)
	f.NewValue(blk, lowerssa.OpReturn, 1, v)

	locals := []Local{{Name: "x", Size: 8, Align: 8}, {Name: "y", Size: 8, Align: 8}}
	spillLive := map[*lowerssa.Block]map[*lowerssa.Value]bool{blk: {v: true}}

	frame := Allocate(f.Blocks, spillLive, locals)

	require.Equal(t, int64(headerSize), frame.LocalOffsets["x"])
	require.Equal(t, headerSize+8, frame.LocalOffsets["y"])
	require.True(t, frame.SlotOffsets[v] >= headerSize+16)
	require.Equal(t, int64(0), frame.Size%16)
}
