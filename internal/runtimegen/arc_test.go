package runtimegen

import (
	"testing"

	"github.com/cot-lang/cotc/internal/testing/require"
)

// Every generator below panics on malformed CLIF via Builder.Finalize (§4.1's
// unterminated-block failure mode), so simply calling one is already a structural
// soundness check of the function it returns.

func TestAllocDeallocRoundTrip(t *testing.T) {
	alloc := Alloc()
	require.Equal(t, "alloc", alloc.Name)
	require.Equal(t, 2, len(alloc.Signature.Params))
	require.Equal(t, 1, len(alloc.Signature.Results))

	dealloc := Dealloc()
	require.Equal(t, "dealloc", dealloc.Name)
	require.Equal(t, 1, len(dealloc.Signature.Params))
	require.Equal(t, 0, len(dealloc.Signature.Results))
}

func TestRetainReleaseShapes(t *testing.T) {
	retain := Retain()
	require.Equal(t, "retain", retain.Name)
	require.Equal(t, 1, len(retain.Signature.Results))

	release := Release()
	require.Equal(t, "release", release.Name)
	require.Equal(t, 0, len(release.Signature.Results))

	// release must reference unowned_release as a colocated runtime call (§4.10
	// "Calls to colocated functions may use a shorter relocation").
	var sawUnownedRelease bool
	for _, ref := range release.FuncRefs() {
		if ref.Name == "unowned_release" {
			sawUnownedRelease = true
			require.True(t, ref.Colocated, "unowned_release must be a colocated reference")
		}
	}
	require.True(t, sawUnownedRelease, "release must call unowned_release")
}

func TestUnownedFunctionsBuild(t *testing.T) {
	ur := UnownedRetain()
	require.Equal(t, "unowned_retain", ur.Name)

	rel := UnownedRelease()
	require.Equal(t, "unowned_release", rel.Name)
	var sawDealloc bool
	for _, ref := range rel.FuncRefs() {
		if ref.Name == "dealloc" {
			sawDealloc = true
		}
	}
	require.True(t, sawDealloc, "unowned_release must call dealloc")

	ls := UnownedLoadStrong()
	require.Equal(t, "unowned_load_strong", ls.Name)
	require.Equal(t, 1, len(ls.Signature.Results))
}

func TestRealloc(t *testing.T) {
	r := Realloc()
	require.Equal(t, "realloc", r.Name)
	require.Equal(t, 2, len(r.Signature.Params))
}

func TestStringOps(t *testing.T) {
	concat := StringConcat()
	require.Equal(t, "string_concat", concat.Name)
	require.Equal(t, 4, len(concat.Signature.Params))

	eq := StringEq()
	require.Equal(t, "string_eq", eq.Name)
	require.Equal(t, 1, len(eq.Signature.Results))
}

func TestEveryBlockIsTerminated(t *testing.T) {
	check := func(name string, n int) {
		require.True(t, n > 0, "%s: expected at least one block", name)
	}
	check("alloc", len(Alloc().Blocks()))
	check("release", len(Release().Blocks()))
	check("realloc", len(Realloc().Blocks()))
	check("string_concat", len(StringConcat().Blocks()))
	check("string_eq", len(StringEq().Blocks()))
}
