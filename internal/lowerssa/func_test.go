package lowerssa

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestNewValueTracksUseCounts(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	blk := f.NewBlock()
	a := f.NewValue(blk, OpArg, 1)
	b := f.NewValue(blk, OpArg, 1)
	sum := f.NewValue(blk, OpAdd, 1, a, b)

	require.Equal(t, 1, a.UseCount)
	require.Equal(t, 1, b.UseCount)
	require.Equal(t, 0, sum.UseCount)
	require.Equal(t, blk, sum.Block())
	require.NotEqual(t, a.ID(), b.ID())
}

func TestInsertValueBeforeSplicesAheadOfTarget(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	blk := f.NewBlock()
	a := f.NewValue(blk, OpArg, 1)
	ret := f.NewValue(blk, OpReturn, 1, a)

	reload := f.InsertNewValueBefore(blk, ret, OpLoadReg, 1, a)

	require.Equal(t, []*Value{a, reload, ret}, blk.Values)
	require.Equal(t, blk, reload.Block())
}

func TestInsertValueBeforeAppendsWhenAtIsNil(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	blk := f.NewBlock()
	a := f.NewValue(blk, OpArg, 1)
	tail := &Value{Op: OpConstInt, Type: 1}

	InsertValueBefore(blk, nil, tail)

	require.Equal(t, []*Value{a, tail}, blk.Values)
}

func TestReplaceArgUpdatesUseCounts(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	blk := f.NewBlock()
	a := f.NewValue(blk, OpArg, 1)
	b := f.NewValue(blk, OpArg, 1)
	sum := f.NewValue(blk, OpAdd, 1, a, a)

	ReplaceArg(sum, a, b)

	require.Equal(t, []*Value{b, b}, sum.Args)
	require.Equal(t, 0, a.UseCount)
	require.Equal(t, 2, b.UseCount)
}

func TestPostOrderVisitsSuccessorsBeforeBlock(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	entry := f.NewBlock()
	thenBlk := f.NewBlock()
	join := f.NewBlock()
	entry.Succs = []*Block{thenBlk, join}
	thenBlk.Succs = []*Block{join}

	order := f.PostOrder()

	positions := make(map[*Block]int, len(order))
	for i, b := range order {
		positions[b] = i
	}
	require.True(t, positions[join] < positions[thenBlk])
	require.True(t, positions[thenBlk] < positions[entry])
}

func TestBlockTerminatorOfEmptyBlockIsNil(t *testing.T) {
	b := &Block{}
	require.Nil(t, b.Terminator())
}
