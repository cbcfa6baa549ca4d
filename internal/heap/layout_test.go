package heap

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

func TestInitialRefcountDecodesToOneStrongOneUnowned(t *testing.T) {
	require.Equal(t, uint64(1), StrongCount(InitialRefcount))
	require.Equal(t, uint64(1), UnownedCount(InitialRefcount))
	require.False(t, IsDeiniting(InitialRefcount))
}

func TestRetainReleaseRoundTrip(t *testing.T) {
	// Two retains then three releases should mirror Scenario D (§8.3): after the
	// first two releases the object still has a live strong reference; the last
	// release observes strong-extra hitting zero and sets deiniting.
	word := InitialRefcount
	word += StrongRCOne
	word += StrongRCOne
	require.Equal(t, uint64(3), StrongCount(word))

	word -= StrongRCOne
	require.Equal(t, uint64(2), StrongCount(word))
	require.False(t, IsDeiniting(word))

	word -= StrongRCOne
	require.Equal(t, uint64(1), StrongCount(word))

	// Final release: strong-extra was already 0, so this is "the last strong ref".
	require.Equal(t, word&StrongExtraMask, uint64(0))
}

func TestImmortalSentinel(t *testing.T) {
	require.True(t, IsImmortal(Immortal))
	require.False(t, IsImmortal(InitialRefcount))
}

func TestAlignFrameSize(t *testing.T) {
	require.Equal(t, int64(16), AlignFrameSize(0))
	require.Equal(t, int64(16), AlignFrameSize(1))
	require.Equal(t, int64(32), AlignFrameSize(17))
	require.Equal(t, int64(32), AlignFrameSize(32))
}
