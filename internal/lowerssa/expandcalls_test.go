package lowerssa

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

// wideTypeRegistry reports every TypeID >= 100 as a MaxSSAValueBytes-exceeding
// 64-byte aggregate, everything else as an 8-byte primitive.
type wideTypeRegistry struct{}

func (wideTypeRegistry) Size(t TypeID) int64 {
	if t >= 100 {
		return 64
	}
	return 8
}
func (wideTypeRegistry) Align(TypeID) int64   { return 8 }
func (wideTypeRegistry) IsString(TypeID) bool { return false }
func (wideTypeRegistry) PrimitiveHalves(TypeID) (TypeID, TypeID) {
	return 1, 1
}

func TestRewriteOversizedArgsTagsByRef(t *testing.T) {
	f := NewFunc("f", wideTypeRegistry{})
	blk := f.NewBlock()
	small := f.NewValue(blk, OpArg, 1)
	big := f.NewValue(blk, OpArg, 100)
	f.NewValue(blk, OpReturn, 1, small)

	ExpandCalls(f, nil)

	require.Nil(t, small.AuxTag)
	require.Equal(t, "byref", big.AuxTag)
}

func TestRewriteWideSelectStoreBecomesMove(t *testing.T) {
	f := NewFunc("f", wideTypeRegistry{})
	blk := f.NewBlock()
	dst := f.NewValue(blk, OpStackAddr, 1)
	wide := f.NewValue(blk, OpSelect, 100)
	wide.AuxTag = "wide"
	store := f.NewValue(blk, OpStore, TypeID(0), wide, dst)

	ExpandCalls(f, nil)

	require.Equal(t, OpMove, store.Op)
	require.Equal(t, int64(64), store.Aux)
}

func TestExpandCallArgumentsPassesOversizedArgByAddress(t *testing.T) {
	f := NewFunc("f", wideTypeRegistry{})
	blk := f.NewBlock()
	arg := f.NewValue(blk, OpArg, 100)
	call := f.NewValue(blk, OpStaticCall, 1, arg)
	call.AuxTag = "callee"
	f.NewValue(blk, OpReturn, 1, call)

	site := CallSite{Call: call, ArgTypes: []TypeID{100}}
	ExpandCalls(f, []CallSite{site})

	require.Equal(t, OpStackAddr, call.Args[0].Op)
	require.NotEqual(t, arg, call.Args[0])

	var mv *Value
	for _, v := range blk.Values {
		if v.Op == OpMove {
			mv = v
		}
	}
	require.NotNil(t, mv)
	require.Equal(t, arg, mv.Args[0])
	require.Equal(t, int64(64), mv.Aux)
}

func TestExpandCallResultAllocatesHiddenReturnSlot(t *testing.T) {
	f := NewFunc("f", wideTypeRegistry{})
	blk := f.NewBlock()
	call := f.NewValue(blk, OpStaticCall, 100)
	call.AuxTag = "callee"
	f.NewValue(blk, OpReturn, 100, call)

	sites := []CallSite{{Call: call, ResultTypes: []TypeID{100}}}
	ExpandCalls(f, sites)

	require.True(t, sites[0].HiddenReturn)
	require.Equal(t, OpStackAddr, call.Args[0].Op)
	require.Equal(t, int64(64), call.Args[0].Aux)
}

func TestExpandCallResultLeavesSmallReturnAlone(t *testing.T) {
	f := NewFunc("f", wideTypeRegistry{})
	blk := f.NewBlock()
	call := f.NewValue(blk, OpStaticCall, 1)
	call.AuxTag = "callee"
	f.NewValue(blk, OpReturn, 1, call)

	sites := []CallSite{{Call: call, ResultTypes: []TypeID{1}}}
	ExpandCalls(f, sites)

	require.False(t, sites[0].HiddenReturn)
	require.Len(t, call.Args, 0)
}
