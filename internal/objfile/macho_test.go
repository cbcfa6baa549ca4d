package objfile

import (
	"bytes"
	"debug/macho"
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestWriteMachORoundTrips(t *testing.T) {
	o := testObject()
	raw, err := WriteMachO(o, MachoAmd64)
	require.NoError(t, err)

	f, err := macho.NewFile(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, macho.TypeObj, f.Type)
	require.Equal(t, macho.CpuAmd64, f.Cpu)

	sect := f.Section("__text")
	require.NotNil(t, sect)
	data, err := sect.Data()
	require.NoError(t, err)
	require.True(t, len(data) >= 17, "__text must hold both functions plus alignment padding")
	require.Equal(t, 2, len(sect.Relocs))

	syms := f.Symtab.Syms
	require.Equal(t, 3, len(syms))
}

func TestWriteMachOArm64(t *testing.T) {
	o := testObject()
	raw, err := WriteMachO(o, MachoArm64)
	require.NoError(t, err)
	f, err := macho.NewFile(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, macho.CpuArm64, f.Cpu)
}
