package clif

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestBuilder_Add(t *testing.T) {
	sig := &Signature{
		CallConv: CallConvSystemV,
		Params:   []ABIParam{{Type: TypeI64}, {Type: TypeI64}},
		Results:  []ABIParam{{Type: TypeI64}},
	}
	b := NewBuilder()
	b.Init("add", sig)

	entry := b.CreateEntryBlock()
	b.SetCurrentBlock(entry)
	params := b.Func().Block(entry).Params()
	require.Len(t, params, 2)

	sum := b.Iadd(params[0], params[1])
	b.Return([]ValueID{sum})

	require.NoError(t, b.Finalize())
	require.Equal(t, TypeI64, b.Func().ValueType(sum))
	require.Equal(t, OpcodeIadd, b.Func().ValueDef(sum).Opcode())
}

func TestBuilder_FinalizeRejectsUnterminatedBlock(t *testing.T) {
	sig := &Signature{CallConv: CallConvSystemV, Params: nil, Results: nil}
	b := NewBuilder()
	b.Init("f", sig)
	entry := b.CreateEntryBlock()
	b.SetCurrentBlock(entry)
	require.Error(t, b.Finalize())
}

func TestBuilder_BranchMaintainsPreds(t *testing.T) {
	sig := &Signature{CallConv: CallConvSystemV, Params: []ABIParam{{Type: TypeI32}}, Results: []ABIParam{{Type: TypeI32}}}
	b := NewBuilder()
	b.Init("check", sig)

	entry := b.CreateEntryBlock()
	thenBlk := b.CreateBlock()
	elseBlk := b.CreateBlock()

	b.SetCurrentBlock(entry)
	params := b.Func().Block(entry).Params()
	one := b.Iconst(TypeI32, 1)
	cmp := b.Icmp(IntCCSignedGreaterThan, params[0], one)
	b.Brif(cmp, thenBlk, nil, elseBlk, nil)

	b.SetCurrentBlock(thenBlk)
	b.Return([]ValueID{b.Iconst(TypeI32, 99)})

	b.SetCurrentBlock(elseBlk)
	b.Return([]ValueID{b.Iconst(TypeI32, 0)})

	require.NoError(t, b.Finalize())
	require.Equal(t, []BlockID{entry}, b.Func().Block(thenBlk).Preds())
	require.Equal(t, []BlockID{entry}, b.Func().Block(elseBlk).Preds())
}
