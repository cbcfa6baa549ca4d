package abi

// Register numbers used by AAPCS64. The ARM64 encoder (internal/isa/arm64) takes
// plain register numbers rather than named constants, so x0..x7 are just 0..7.
const (
	X0 = 0
	X1 = 1
	X2 = 2
	X3 = 3
	X4 = 4
	X5 = 5
	X6 = 6
	X7 = 7

	// X21PinnedVMContext is reserved for the VM context pointer across the whole
	// compiled program (§4.9) and is never handed out by Assign.
	X21PinnedVMContext = 21
)
