package objfile

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func testObject() *Object {
	o := &Object{}
	o.AddFunction(Function{Name: "main", Code: []byte{0x90, 0x90, 0x90}})
	o.AddFunction(Function{
		Name: "helper",
		Code: []byte{0xc3},
		Relocs: []Relocation{
			{Offset: 0, Symbol: "cot_rt_alloc", Kind: RelocPCRel32},
			{Offset: 0, Symbol: "main", Kind: RelocPCRel32Colocated},
		},
	})
	o.AddExtern("cot_rt_alloc")
	return o
}

func TestLayoutAligns(t *testing.T) {
	o := testObject()
	offsets, text := o.layout(16)
	require.Equal(t, uint64(0), offsets[0])
	require.Equal(t, uint64(16), offsets[1], "second function must start on a 16-byte boundary")
	require.Equal(t, 17, len(text))
}

func TestSymbolsSortedByName(t *testing.T) {
	o := testObject()
	offsets, _ := o.layout(16)
	syms := o.symbols(offsets)
	require.Equal(t, 3, len(syms))
	for i := 1; i < len(syms); i++ {
		require.True(t, syms[i-1].name < syms[i].name, "symbol table must be sorted")
	}
	for _, s := range syms {
		if s.name == "cot_rt_alloc" {
			require.True(t, s.external, "extern-only symbol must be marked external")
		}
	}
}

func TestAddExternDedups(t *testing.T) {
	o := &Object{}
	o.AddExtern("cot_rt_alloc")
	o.AddExtern("cot_rt_alloc")
	require.Len(t, o.Externs, 1)
}
