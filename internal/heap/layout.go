// Package heap defines the ARC heap object header layout and refcount word bit
// layout that the runtime generators (internal/runtimegen) emit CLIF against (§3.4,
// §6.3, §6.4). These constants are the stable wire contract between compiled user
// code and the compiled ARC runtime functions, so they live in their own package
// rather than inside runtimegen.
package heap

const (
	// HeaderSize is the fixed header preceding every heap object's user data.
	HeaderSize = 24

	// Byte offsets within the header, relative to the object pointer minus HeaderSize.
	OffsetAllocSize = 0
	OffsetMetadata  = 8
	OffsetRefcount  = 16
)

// Refcount word bit layout (§6.3):
//
//	bit 0      pure-dealloc flag (always 1 in this runtime)
//	bits 1-31  unowned refcount, direct
//	bit 32     deiniting flag
//	bits 33-62 strong extra refcount (extra-count convention)
//	bit 63     slow-path flag (reserved, always 0)
const (
	PureDeallocBit  = 0
	UnownedShift    = 1
	UnownedBits     = 31
	DeinitingBit    = 32
	StrongExtraShift = 33
	StrongExtraBits  = 30
	SlowPathBit      = 63

	// UnownedRCOne is the increment for one unowned reference.
	UnownedRCOne uint64 = 1 << UnownedShift
	// StrongRCOne is the increment for one strong reference, in the extra-count
	// convention (a stored 0 in the strong-extra field means one logical strong ref).
	StrongRCOne uint64 = 1 << StrongExtraShift

	// InitialRefcount is the refcount word written by alloc: pure-dealloc set, one
	// unowned reference (the object's own backing store), zero strong-extra (so the
	// logical strong count is 1).
	InitialRefcount uint64 = 0x0000_0000_0000_0003

	// Immortal is the sentinel refcount for compile-time constants: retain/release
	// both test for it and no-op.
	Immortal uint64 = 0xFFFF_FFFF_FFFF_FFFF
)

// DeinitingMask isolates the deiniting flag.
const DeinitingMask uint64 = 1 << DeinitingBit

// UnownedMask isolates the unowned refcount field.
const UnownedMask uint64 = ((1 << UnownedBits) - 1) << UnownedShift

// StrongExtraMask isolates the strong-extra refcount field.
const StrongExtraMask uint64 = ((uint64(1) << StrongExtraBits) - 1) << StrongExtraShift

// UnownedCount extracts the direct unowned refcount from a refcount word.
func UnownedCount(word uint64) uint64 {
	return (word & UnownedMask) >> UnownedShift
}

// StrongCount extracts the logical strong count (extra-count convention: stored 0
// means a logical count of 1) from a refcount word.
func StrongCount(word uint64) uint64 {
	return ((word & StrongExtraMask) >> StrongExtraShift) + 1
}

// IsDeiniting reports whether the deiniting flag is set.
func IsDeiniting(word uint64) bool {
	return word&DeinitingMask != 0
}

// IsImmortal reports whether word is the immortal sentinel.
func IsImmortal(word uint64) bool {
	return word == Immortal
}

// FrameAlignment is the ABI-mandated stack alignment at call boundaries on both
// AMD64 and ARM64 (§3.5, §4.9).
const FrameAlignment = 16

// AlignFrameSize rounds size up to a multiple of FrameAlignment, never returning
// less than FrameAlignment itself, per §3.5 / §8.1 invariant 4.
func AlignFrameSize(size int64) int64 {
	aligned := (size + FrameAlignment - 1) &^ (FrameAlignment - 1)
	if aligned < FrameAlignment {
		return FrameAlignment
	}
	return aligned
}
