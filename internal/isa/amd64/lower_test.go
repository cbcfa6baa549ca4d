package amd64

import (
	"testing"

	"github.com/cot-lang/cotc/internal/lowerssa"
	"github.com/cot-lang/cotc/internal/objfile"
	"github.com/cot-lang/cotc/internal/regalloc"
	"github.com/cot-lang/cotc/internal/testing/require"
)

func newFunc(name string) (*lowerssa.Func, lowerssa.BasicTypeRegistry) {
	types := lowerssa.BasicTypeRegistry{I64Type: 1}
	return lowerssa.NewFunc(name, types), types
}

// buildAddFunc builds `func add(a, b int64) int64 { return a + b }` (§8.3 scenario A).
func buildAddFunc() *lowerssa.Func {
	f, types := newFunc("add")
	entry := f.NewBlock()
	a := f.NewValue(entry, lowerssa.OpArg, types.I64Type)
	a.Aux = 0
	b := f.NewValue(entry, lowerssa.OpArg, types.I64Type)
	b.Aux = 1
	sum := f.NewValue(entry, lowerssa.OpAdd, types.I64Type, a, b)
	f.NewValue(entry, lowerssa.OpReturn, types.I64Type, sum)
	return f
}

func TestCompileFuncAddEmitsPrologueAndEpilogue(t *testing.T) {
	fn, err := CompileFunc(buildAddFunc(), "add", nil)
	require.NoError(t, err)
	require.Equal(t, "add", fn.Name)

	require.True(t, len(fn.Code) > 4)
	require.Equal(t, EncodePUSH(RBP), fn.Code[:1])
	require.Equal(t, EncodeMOVRegReg(RBP, RSP), fn.Code[1:4])

	require.Equal(t, byte(0xC3), fn.Code[len(fn.Code)-1])
}

// buildIfElseFunc builds an if/else over a comparison (§8.3 scenario F): entry
// computes a < b, then branches to one of two blocks that return different
// constants, both joining is unnecessary since each side returns directly.
func buildIfElseFunc() *lowerssa.Func {
	f, types := newFunc("choose")
	entry := f.NewBlock()
	thenBlk := f.NewBlock()
	elseBlk := f.NewBlock()

	a := f.NewValue(entry, lowerssa.OpArg, types.I64Type)
	a.Aux = 0
	b := f.NewValue(entry, lowerssa.OpArg, types.I64Type)
	b.Aux = 1
	cmp := f.NewValue(entry, lowerssa.OpIcmp, types.I64Type, a, b)
	cmp.Aux = int64(lowerssa.IntCCSignedLessThan)
	entry.Succs = []*lowerssa.Block{thenBlk, elseBlk}
	entry.LikelySucc = elseBlk
	thenBlk.Preds = []*lowerssa.Block{entry}
	elseBlk.Preds = []*lowerssa.Block{entry}
	f.NewValue(entry, lowerssa.OpBrnz, 0, cmp)

	one := f.NewValue(thenBlk, lowerssa.OpConstInt, types.I64Type)
	one.Aux = 1
	f.NewValue(thenBlk, lowerssa.OpReturn, types.I64Type, one)

	zero := f.NewValue(elseBlk, lowerssa.OpConstInt, types.I64Type)
	zero.Aux = 0
	f.NewValue(elseBlk, lowerssa.OpReturn, types.I64Type, zero)

	return f
}

func TestCompileFuncIfElseProducesTwoReturns(t *testing.T) {
	fn, err := CompileFunc(buildIfElseFunc(), "choose", nil)
	require.NoError(t, err)

	rets := 0
	for _, b := range fn.Code {
		if b == 0xC3 {
			rets++
		}
	}
	require.True(t, rets >= 2, "expected at least 2 RET opcodes in the compiled code")
}

// buildFactorialFunc builds a self-recursive call (§8.3 scenario B): the static-call
// site carries its callee's symbol in AuxTag per lowerssa.Value's own documented
// convention.
func buildFactorialFunc() *lowerssa.Func {
	f, types := newFunc("factorial")
	entry := f.NewBlock()
	n := f.NewValue(entry, lowerssa.OpArg, types.I64Type)
	n.Aux = 0
	call := f.NewValue(entry, lowerssa.OpStaticCall, types.I64Type, n)
	call.AuxTag = "factorial"
	f.NewValue(entry, lowerssa.OpReturn, types.I64Type, call)
	return f
}

func TestCompileFuncStaticCallEmitsRelocation(t *testing.T) {
	fn, err := CompileFunc(buildFactorialFunc(), "factorial", nil)
	require.NoError(t, err)
	require.Len(t, fn.Relocs, 1)
	require.Equal(t, "factorial", fn.Relocs[0].Symbol)
	require.Equal(t, objfile.RelocPCRel32, fn.Relocs[0].Kind)
	require.Equal(t, byte(0xE8), fn.Code[fn.Relocs[0].Offset-1])
}

func TestCompileFuncRejectsUnsupportedOpcode(t *testing.T) {
	f, types := newFunc("bad")
	entry := f.NewBlock()
	f.NewValue(entry, lowerssa.OpSdiv, types.I64Type)
	_, err := CompileFunc(f, "bad", nil)
	require.ErrorContains(t, err, "unsupported lowerssa opcode")
}

func TestTargetExcludesFrameRegisters(t *testing.T) {
	tgt := Target()
	require.False(t, tgt.Allocatable.Has(regalloc.Reg(RBP)))
	require.False(t, tgt.Allocatable.Has(regalloc.Reg(RSP)))
	require.False(t, tgt.Allocatable.Has(regalloc.Reg(R11)))
	require.True(t, tgt.Allocatable.Has(regalloc.Reg(RAX)))
	require.True(t, tgt.CallerSaved.Has(regalloc.Reg(R11)))
}
