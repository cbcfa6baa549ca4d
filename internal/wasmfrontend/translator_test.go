package wasmfrontend

import (
	"testing"

	"github.com/cot-lang/cotc/internal/clif"
	"github.com/cot-lang/cotc/internal/testing/require"
)

func newBuilder(name string, params, results []clif.Type) *clif.Builder {
	ps := make([]clif.ABIParam, len(params))
	for i, p := range params {
		ps[i] = clif.ABIParam{Type: p}
	}
	rs := make([]clif.ABIParam, len(results))
	for i, r := range results {
		rs[i] = clif.ABIParam{Type: r}
	}
	b := clif.NewBuilder()
	b.Init(name, &clif.Signature{CallConv: clif.CallConvSystemV, Params: ps, Results: rs})
	return b
}

// TestAdd covers spec scenario A: two i32 params, (local.get 0) (local.get 1)
// i32.add, end.
func TestAdd(t *testing.T) {
	b := newBuilder("add", []clif.Type{clif.TypeI32, clif.TypeI32}, []clif.Type{clif.TypeI32})
	tr := NewTranslator(b, []ValType{ValI32, ValI32}, nil, []ValType{ValI32})

	require.NoError(t, tr.LocalGet(0))
	require.NoError(t, tr.LocalGet(1))
	require.NoError(t, tr.Binary(OpI32Add))
	require.NoError(t, tr.End())
	require.NoError(t, tr.Finish())

	entry := b.Func().Blocks()[0]
	term := b.Func().Block(entry).Terminator()
	require.Equal(t, clif.OpcodeReturn, term.Opcode())
}

// TestIfElse covers spec scenario F: a one-armed comparison selecting between
// two i32 results through an if/else with a result type.
func TestIfElse(t *testing.T) {
	b := newBuilder("select_one", []clif.Type{clif.TypeI32}, []clif.Type{clif.TypeI32})
	tr := NewTranslator(b, []ValType{ValI32}, nil, []ValType{ValI32})

	require.NoError(t, tr.LocalGet(0))
	require.NoError(t, tr.Eqz(OpI32Eqz))
	require.NoError(t, tr.If(BlockType{Results: []ValType{ValI32}}))
	tr.I32Const(1)
	require.NoError(t, tr.Else())
	tr.I32Const(2)
	require.NoError(t, tr.End())
	require.NoError(t, tr.End())
	require.NoError(t, tr.Finish())

	require.True(t, len(b.Func().Blocks()) >= 4, "if/else must allocate then/else/continuation blocks")
}

// TestLoopBranch covers a loop that counts a local down to zero via br_if back
// to the header, then falls through to the loop's continuation.
func TestLoopBranch(t *testing.T) {
	b := newBuilder("countdown", []clif.Type{clif.TypeI32}, nil)
	tr := NewTranslator(b, []ValType{ValI32}, nil, nil)

	require.NoError(t, tr.Loop(BlockType{}))
	require.NoError(t, tr.LocalGet(0))
	tr.I32Const(1)
	require.NoError(t, tr.Binary(OpI32Sub))
	require.NoError(t, tr.LocalSet(0))
	require.NoError(t, tr.LocalGet(0))
	require.NoError(t, tr.BrIf(0))
	require.NoError(t, tr.End())
	require.NoError(t, tr.End())
	require.NoError(t, tr.Finish())

	require.True(t, len(b.Func().Blocks()) >= 3, "loop needs a header, a br_if fallthrough, and an after-block")
}

// TestUnreachableTail covers the unreachable-propagation rule (§4.2): code after
// an unconditional branch inside a block is dropped until the matching end.
func TestUnreachableTail(t *testing.T) {
	b := newBuilder("dead_tail", nil, nil)
	tr := NewTranslator(b, nil, nil, nil)

	require.NoError(t, tr.Block(BlockType{}))
	require.NoError(t, tr.Br(0))
	// Dead code: must not panic even though it would otherwise try to append
	// after the block's terminator.
	tr.I32Const(42)
	require.NoError(t, tr.Drop())
	require.NoError(t, tr.End())
	require.NoError(t, tr.End())
	require.NoError(t, tr.Finish())
}

func TestBrTable(t *testing.T) {
	b := newBuilder("dispatch", []clif.Type{clif.TypeI32}, nil)
	tr := NewTranslator(b, []ValType{ValI32}, nil, nil)

	require.NoError(t, tr.Block(BlockType{}))
	require.NoError(t, tr.Block(BlockType{}))
	require.NoError(t, tr.Block(BlockType{}))
	require.NoError(t, tr.LocalGet(0))
	require.NoError(t, tr.BrTable([]uint32{0, 1}, 2))
	require.NoError(t, tr.End())
	require.NoError(t, tr.End())
	require.NoError(t, tr.End())
	require.NoError(t, tr.End())
	require.NoError(t, tr.Finish())
}

func TestCallRoundTrip(t *testing.T) {
	b := newBuilder("caller", nil, []clif.Type{clif.TypeI64})
	calleeSig := b.DeclareSignature(&clif.Signature{
		CallConv: clif.CallConvSystemV,
		Params:   []clif.ABIParam{{Type: clif.TypeI64}},
		Results:  []clif.ABIParam{{Type: clif.TypeI64}},
	})
	ref := b.DeclareFuncRef("callee", calleeSig, true)

	tr := NewTranslator(b, nil, nil, []ValType{ValI64})
	tr.I64Const(7)
	require.NoError(t, tr.Call(ref, calleeSig, 1, []ValType{ValI64}))
	require.NoError(t, tr.End())
	require.NoError(t, tr.Finish())
}
