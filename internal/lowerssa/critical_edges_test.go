package lowerssa

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

// buildDiamondWithCriticalEdge builds:
//
//	entry --(brz, then)--> a --(jump)--> join
//	entry --(brz, else)----------------> join
//
// join has two preds (entry, a); entry has two succs (a, join) — the entry->join
// edge is critical. The a->join edge is not (a has only one successor).
func buildDiamondWithCriticalEdge() (f *Func, entry, a, join *Block) {
	f = NewFunc("f", BasicTypeRegistry{I64Type: 1})
	entry = f.NewBlock()
	a = f.NewBlock()
	join = f.NewBlock()

	entry.Succs = []*Block{a, join}
	a.Preds = []*Block{entry}
	a.Succs = []*Block{join}
	join.Preds = []*Block{entry, a}

	cond := f.NewValue(entry, OpArg, 1)
	f.NewValue(entry, OpBrz, TypeID(0), cond)

	entryConst := f.NewValue(entry, OpConstInt, 1)
	entryConst.Aux = 0
	phi := f.NewValue(join, OpPhi, 1, entryConst)
	f.NewValue(a, OpJump, TypeID(0))

	aConst := f.NewValue(a, OpConstInt, 1)
	aConst.Aux = 7
	phi.Args = append(phi.Args, aConst)

	f.NewValue(join, OpReturn, 1, phi)
	return f, entry, a, join
}

func TestSplitCriticalEdges_InsertsTrampolineOnlyOnCriticalEdge(t *testing.T) {
	f, entry, a, join := buildDiamondWithCriticalEdge()

	SplitCriticalEdges(f)

	// entry's edge to a is untouched (a has a single predecessor); its edge to join
	// (critical) was retargeted to a freshly inserted trampoline block.
	require.Equal(t, a, entry.Succs[0])
	require.NotEqual(t, join, entry.Succs[1])
	trampoline := entry.Succs[1]
	require.NotEqual(t, a, trampoline)

	require.Equal(t, []*Block{entry}, trampoline.Preds)
	require.Equal(t, []*Block{join}, trampoline.Succs)
	require.Equal(t, OpJump, trampoline.Terminator().Op)

	// join's predecessor list keeps its length and index order (entry's slot now
	// names the trampoline instead), so join's phi argument vector for that slot
	// still lines up with the predecessor that originally supplied it.
	require.Len(t, join.Preds, 2)
	require.Equal(t, trampoline, join.Preds[0])
	require.Equal(t, a, join.Preds[1])

	// a->join was never critical: a's single successor is untouched.
	require.Equal(t, []*Block{join}, a.Succs)
}

func TestSplitCriticalEdges_LeavesNonCriticalEdgesAlone(t *testing.T) {
	f := NewFunc("f", BasicTypeRegistry{I64Type: 1})
	entry := f.NewBlock()
	single := f.NewBlock()
	entry.Succs = []*Block{single}
	single.Preds = []*Block{entry}

	cond := f.NewValue(entry, OpArg, 1)
	f.NewValue(entry, OpJump, TypeID(0), cond)
	f.NewValue(single, OpReturn, 1, cond)

	nBlocksBefore := len(f.Blocks)
	SplitCriticalEdges(f)

	require.Equal(t, nBlocksBefore, len(f.Blocks))
	require.Equal(t, []*Block{single}, entry.Succs)
}

func TestSplitCriticalEdges_IsIdempotent(t *testing.T) {
	f, entry, _, _ := buildDiamondWithCriticalEdge()

	SplitCriticalEdges(f)
	nBlocksAfterFirst := len(f.Blocks)
	trampoline := entry.Succs[1]

	SplitCriticalEdges(f)

	require.Equal(t, nBlocksAfterFirst, len(f.Blocks))
	require.Equal(t, trampoline, entry.Succs[1])
}
