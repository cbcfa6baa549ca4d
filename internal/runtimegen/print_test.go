package runtimegen

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestPrintIntShapes(t *testing.T) {
	p := PrintInt()
	require.Equal(t, "print_int", p.Name)
	require.Equal(t, 1, len(p.Signature.Params))
	require.Equal(t, 0, len(p.Signature.Results))
	require.True(t, len(p.Blocks()) > 1, "print_int must branch on sign and on the zero case")

	ep := EprintInt()
	require.Equal(t, "eprint_int", ep.Name)
}

func TestIntToStringShapes(t *testing.T) {
	its := IntToString()
	require.Equal(t, "int_to_string", its.Name)
	require.Equal(t, 2, len(its.Signature.Params))
	require.Equal(t, 1, len(its.Signature.Results))
}
