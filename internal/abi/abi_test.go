package abi

import (
	"testing"

	"github.com/cot-lang/cotc/internal/clif"
	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestAssignSystemVScalarParamsUseRegisters(t *testing.T) {
	sig := &clif.Signature{
		CallConv: clif.CallConvSystemV,
		Params:   []clif.ABIParam{{Type: clif.TypeI64}, {Type: clif.TypeI64}, {Type: clif.TypeI32}},
		Results:  []clif.ABIParam{{Type: clif.TypeI64}},
	}
	a := Assign(SystemV, sig)

	require.Len(t, a.Params, 3)
	require.Equal(t, ClassRegister, a.Params[0].Class)
	require.Equal(t, RDI, a.Params[0].Reg)
	require.Equal(t, RSI, a.Params[1].Reg)
	require.Equal(t, RDX, a.Params[2].Reg)
	require.Len(t, a.Results, 1)
	require.Equal(t, RAX, a.Results[0].Reg)
	require.Nil(t, a.HiddenReturnSlot)
}

func TestAssignSystemVOverflowsToStack(t *testing.T) {
	params := make([]clif.ABIParam, 8)
	for i := range params {
		params[i] = clif.ABIParam{Type: clif.TypeI64}
	}
	sig := &clif.Signature{CallConv: clif.CallConvSystemV, Params: params}
	a := Assign(SystemV, sig)

	for i := 0; i < 6; i++ {
		require.Equal(t, ClassRegister, a.Params[i].Class)
	}
	require.Equal(t, ClassStack, a.Params[6].Class)
	require.Equal(t, int64(0), a.Params[6].Offset)
	require.Equal(t, ClassStack, a.Params[7].Class)
	require.Equal(t, int64(8), a.Params[7].Offset)
	require.Equal(t, int64(16), a.StackArgsSize)
}

func TestAssignAAPCS64UsesEightParamRegisters(t *testing.T) {
	params := make([]clif.ABIParam, 9)
	for i := range params {
		params[i] = clif.ABIParam{Type: clif.TypeI64}
	}
	sig := &clif.Signature{CallConv: clif.CallConvAAPCS64, Params: params}
	a := Assign(AAPCS64, sig)

	for i := 0; i < 8; i++ {
		require.Equal(t, ClassRegister, a.Params[i].Class)
	}
	require.Equal(t, ClassStack, a.Params[8].Class)
}

func TestAssignLargeAggregateResultUsesHiddenReturnPointer(t *testing.T) {
	sig := &clif.Signature{
		CallConv: clif.CallConvSystemV,
		Params:   []clif.ABIParam{{Type: clif.TypeI64}},
		// No single scalar type in this IR exceeds 16 bytes, so the oversized
		// result is modelled as three i64 results: 24 bytes together, over the
		// 16-byte register-aggregate limit.
		Results: []clif.ABIParam{{Type: clif.TypeI64}, {Type: clif.TypeI64}, {Type: clif.TypeI64}},
	}
	a := Assign(SystemV, sig)

	require.NotNil(t, a.HiddenReturnSlot)
	require.Equal(t, RDI, a.HiddenReturnSlot.Reg)
	// The hidden pointer consumed the first parameter register, so the real
	// first parameter is pushed to the second.
	require.Equal(t, RSI, a.Params[0].Reg)
	require.Len(t, a.Results, 1)
	require.Equal(t, ClassStack, a.Results[0].Class)
}

func TestPairsZipsIndexWithSlot(t *testing.T) {
	sig := &clif.Signature{CallConv: clif.CallConvSystemV, Params: []clif.ABIParam{{Type: clif.TypeI64}, {Type: clif.TypeI32}}}
	a := Assign(SystemV, sig)
	pairs := Pairs(a.Params)

	require.Len(t, pairs, 2)
	require.Equal(t, 0, pairs[0].A)
	require.Equal(t, 1, pairs[1].A)
	require.Equal(t, RDI, pairs[0].B.Reg)
}
