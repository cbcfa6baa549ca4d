package runtimegen

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestIOShimSignatures(t *testing.T) {
	fdWrite := FdWrite()
	require.Equal(t, "fd_write", fdWrite.Name)
	require.Equal(t, 3, len(fdWrite.Signature.Params))
	require.Equal(t, 1, len(fdWrite.Signature.Results))

	fdRead := FdRead()
	require.Equal(t, "fd_read", fdRead.Name)
	require.Equal(t, 3, len(fdRead.Signature.Params))

	fdClose := FdClose()
	require.Equal(t, "fd_close", fdClose.Name)
	require.Equal(t, 1, len(fdClose.Signature.Params))

	fdSeek := FdSeek()
	require.Equal(t, "fd_seek", fdSeek.Name)
	require.Equal(t, 3, len(fdSeek.Signature.Params))

	random := Random()
	require.Equal(t, "random", random.Name)
	require.Equal(t, 2, len(random.Signature.Params))

	exit := Exit()
	require.Equal(t, "exit", exit.Name)
	require.Equal(t, 0, len(exit.Signature.Results))

	memsetZero := MemsetZero()
	require.Equal(t, "memset_zero", memsetZero.Name)
	require.Equal(t, 2, len(memsetZero.Signature.Params))
	require.Equal(t, 0, len(memsetZero.Signature.Results))

	fdOpen := FdOpen()
	require.Equal(t, "fd_open", fdOpen.Name)
	require.Equal(t, 3, len(fdOpen.Signature.Params))
	require.Equal(t, 1, len(fdOpen.Signature.Results))

	tm := Time()
	require.Equal(t, "time", tm.Name)
	require.Equal(t, 0, len(tm.Signature.Params))
	require.Equal(t, 1, len(tm.Signature.Results))
}
