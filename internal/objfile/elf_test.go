package objfile

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestWriteELFRoundTrips(t *testing.T) {
	o := testObject()
	raw, err := WriteELF(o, elf.EM_X86_64)
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, elf.ET_REL, f.Type)
	require.Equal(t, elf.EM_X86_64, f.Machine)

	text := f.Section(".text")
	require.NotNil(t, text)
	data, err := text.Data()
	require.NoError(t, err)
	require.True(t, len(data) >= 17, "text section must hold both functions plus alignment padding")

	syms, err := f.Symbols()
	require.NoError(t, err)
	require.Equal(t, 3, len(syms))

	names := make(map[string]elf.Symbol, len(syms))
	for _, s := range syms {
		names[s.Name] = s
	}
	main, ok := names["main"]
	require.True(t, ok, "main must appear in the symbol table")
	require.Equal(t, uint64(0), main.Value)
	helper, ok := names["helper"]
	require.True(t, ok)
	require.Equal(t, uint64(16), helper.Value)
	extern, ok := names["cot_rt_alloc"]
	require.True(t, ok)
	require.Equal(t, elf.SHN_UNDEF, extern.Section)

	rela := f.Section(".rela.text")
	require.NotNil(t, rela)
	require.Equal(t, uint64(2*24), rela.Size, ".rela.text must hold two Elf64_Rela entries")
}

func TestWriteELFArm64(t *testing.T) {
	o := testObject()
	raw, err := WriteELF(o, elf.EM_AARCH64)
	require.NoError(t, err)
	f, err := elf.NewFile(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, elf.EM_AARCH64, f.Machine)
}
