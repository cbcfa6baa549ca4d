package lowerssa

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func usesOf(v *Value) []int {
	var out []int
	for u := v.Uses; u != nil; u = u.Next {
		out = append(out, u.Distance)
	}
	return out
}

func TestComputeLivenessRecordsUseDistanceWithinABlock(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	blk := f.NewBlock()
	a := f.NewValue(blk, OpArg, 1)
	a.Aux = 0
	b := f.NewValue(blk, OpArg, 1)
	b.Aux = 1
	sum := f.NewValue(blk, OpAdd, 1, a, b)
	f.NewValue(blk, OpReturn, 1, sum)

	ComputeLiveness(f)

	sumDists := usesOf(sum)
	require.True(t, len(sumDists) > 0)
	require.Equal(t, 1, sumDists[0])
	require.True(t, len(usesOf(a)) > 0)
	require.True(t, len(usesOf(b)) > 0)
}

func TestComputeLivenessCarriesLiveOutAcrossABranch(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	entry := f.NewBlock()
	thenBlk := f.NewBlock()
	elseBlk := f.NewBlock()
	entry.Succs = []*Block{thenBlk, elseBlk}
	thenBlk.Preds = []*Block{entry}
	elseBlk.Preds = []*Block{entry}

	a := f.NewValue(entry, OpArg, 1)
	a.Aux = 0
	cond := f.NewValue(entry, OpArg, 1)
	cond.Aux = 1
	f.NewValue(entry, OpBrnz, 0, cond)

	f.NewValue(thenBlk, OpReturn, 1, a)
	zero := f.NewValue(elseBlk, OpConstInt, 1)
	f.NewValue(elseBlk, OpReturn, 1, zero)

	ComputeLiveness(f)

	require.True(t, entry.LiveOut[a] > 0, "a must be live out of entry since thenBlk returns it")
}

func TestComputeLivenessPenalizesValuesLiveAcrossACall(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	blk := f.NewBlock()
	a := f.NewValue(blk, OpArg, 1)
	a.Aux = 0
	call := f.NewValue(blk, OpStaticCall, 1)
	call.AuxTag = "callee"
	sum := f.NewValue(blk, OpAdd, 1, a, call)
	f.NewValue(blk, OpReturn, 1, sum)

	ComputeLiveness(f)

	dists := usesOf(a)
	require.True(t, len(dists) > 0)
	foundPenalized := false
	for _, d := range dists {
		if d >= DistanceUnlikelyOrCall {
			foundPenalized = true
		}
	}
	require.True(t, foundPenalized, "a's use across the call must carry the call penalty")
}

func TestComputeNextCallFindsNearestCallAtOrAfterEachIndex(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	blk := f.NewBlock()
	a := f.NewValue(blk, OpArg, 1)
	a.Aux = 0
	call := f.NewValue(blk, OpStaticCall, 1, a)
	call.AuxTag = "callee"
	f.NewValue(blk, OpReturn, 1, call)

	nextCall := ComputeLiveness(f)

	indices := nextCall[blk]
	require.Len(t, indices, 3)
	require.Equal(t, 1, indices[0])
	require.Equal(t, 1, indices[1])
	require.Equal(t, -1, indices[2])
}
