package abi

import "github.com/cot-lang/cotc/internal/isa/amd64"

// Register numbers used by SystemV, expressed in terms of the AMD64 encoder's
// register numbering so a Slot's Reg field can be fed straight back into it.
const (
	RDI = int(amd64.RDI)
	RSI = int(amd64.RSI)
	RDX = int(amd64.RDX)
	RCX = int(amd64.RCX)
	R8  = int(amd64.R8)
	R9  = int(amd64.R9)
	RAX = int(amd64.RAX)
)
