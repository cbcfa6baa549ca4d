package lowerssa

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestDecomposeRewritesStringArg(t *testing.T) {
	types := BasicTypeRegistry{StringType: 2, I64Type: 1}
	f := NewFunc("f", types)
	blk := f.NewBlock()
	arg := f.NewValue(blk, OpArg, types.StringType)
	arg.Aux = 0
	lenUse := f.NewValue(blk, OpStringLen, types.I64Type, arg)
	f.NewValue(blk, OpReturn, types.I64Type, lenUse)

	Decompose(f)

	for _, v := range blk.Values {
		require.NotEqual(t, arg, v, "original string-typed arg must be rewritten away")
	}

	var ret *Value
	for _, v := range blk.Values {
		if v.Op == OpReturn {
			ret = v
		}
	}
	require.NotNil(t, ret)
	require.Equal(t, OpArg, ret.Args[0].Op, "string_len(string_make(ptrArg, lenArg)) should fold to lenArg")
}

func TestDecomposeRewritesConstString(t *testing.T) {
	types := BasicTypeRegistry{StringType: 2, I64Type: 1}
	f := NewFunc("f", types)
	blk := f.NewBlock()
	c := f.NewValue(blk, OpConstString, types.StringType)
	c.AuxTag = "hello"
	f.NewValue(blk, OpReturn, types.StringType, c)

	Decompose(f)

	var mk *Value
	for _, v := range blk.Values {
		if v.Op == OpStringMake {
			mk = v
		}
	}
	require.NotNil(t, mk)
	require.Equal(t, OpConstAddr, mk.Args[0].Op)
	require.Equal(t, OpConstInt, mk.Args[1].Op)
	require.Equal(t, int64(5), mk.Args[1].Aux)
}

func TestDecomposeSplitsStoreOfStringMake(t *testing.T) {
	types := BasicTypeRegistry{StringType: 2, I64Type: 1}
	f := NewFunc("f", types)
	blk := f.NewBlock()
	dst := f.NewValue(blk, OpStackAddr, types.I64Type)
	p := f.NewValue(blk, OpArg, types.I64Type)
	l := f.NewValue(blk, OpArg, types.I64Type)
	mk := f.NewValue(blk, OpStringMake, types.StringType, p, l)
	f.NewValue(blk, OpStore, TypeID(0), mk, dst)

	Decompose(f)

	stores := 0
	for _, v := range blk.Values {
		if v.Op == OpStore {
			stores++
			require.NotEqual(t, OpStringMake, v.Args[0].Op, "a store's value operand must no longer be a string_make composite")
		}
	}
	require.Equal(t, 2, stores)
}
