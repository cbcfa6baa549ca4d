// Package abi assigns a Signature's parameters and results to registers or stack
// slots per platform calling convention (§4.9).
package abi

import (
	"github.com/samber/lo"

	"github.com/cot-lang/cotc/internal/clif"
)

// Class distinguishes how a parameter or result was assigned.
type Class byte

const (
	ClassRegister Class = iota
	ClassRegisterPair
	ClassStack
	ClassHiddenReturnPointer
)

// Slot is one parameter or result's finished assignment.
type Slot struct {
	Class  Class
	Type   clif.Type
	Reg    int   // valid when Class is ClassRegister/ClassHiddenReturnPointer; platform register number
	Reg2   int   // valid when Class is ClassRegisterPair; the second register
	Offset int64 // valid when Class is ClassStack; byte offset from the incoming-args pointer
}

// Platform is the fixed, per-ISA set of facts the assignment algorithm needs
// (§4.9's two fact tables).
type Platform struct {
	ParamRegs      []int
	ResultRegs     []int
	MaxRegAggregate int64 // 16 on both platforms
	StackAlign     int64 // 16 on both platforms
}

var SystemV = Platform{
	ParamRegs:       []int{RDI, RSI, RDX, RCX, R8, R9},
	ResultRegs:      []int{RAX, RDX},
	MaxRegAggregate: 16,
	StackAlign:      16,
}

var AAPCS64 = Platform{
	ParamRegs:       []int{X0, X1, X2, X3, X4, X5, X6, X7},
	ResultRegs:      []int{X0, X1},
	MaxRegAggregate: 16,
	StackAlign:      16,
}

// PlatformFor maps a Signature's calling-convention tag to its fact table.
func PlatformFor(cc clif.CallConv) Platform {
	if cc == clif.CallConvAAPCS64 {
		return AAPCS64
	}
	return SystemV
}

// Assignment is the finished parameter/result descriptor list for a Signature,
// ready for the register allocator and lowering (§4.9 "Output").
type Assignment struct {
	Params           []Slot
	Results          []Slot
	HiddenReturnSlot *Slot // non-nil when the aggregate result needed a hidden pointer
	StackArgsSize    int64
}

// Assign runs the walk-left-to-right assignment algorithm of §4.9 over sig's
// parameters and results for the given platform.
func Assign(platform Platform, sig *clif.Signature) *Assignment {
	a := &Assignment{}

	regIdx := 0
	nextReg := func() (int, bool) {
		if regIdx >= len(platform.ParamRegs) {
			return 0, false
		}
		r := platform.ParamRegs[regIdx]
		regIdx++
		return r, true
	}

	var stackOffset int64

	if needsHiddenReturnPointer(platform, sig.Results) {
		r, ok := nextReg()
		if !ok {
			panic("BUG: hidden return pointer must be the first parameter register")
		}
		a.HiddenReturnSlot = &Slot{Class: ClassHiddenReturnPointer, Type: clif.TypeI64, Reg: r}
	}

	for _, p := range sig.Params {
		a.Params = append(a.Params, assignOne(platform, p, nextReg, &stackOffset))
	}
	a.StackArgsSize = alignUp(stackOffset, platform.StackAlign)

	if a.HiddenReturnSlot != nil {
		a.Results = []Slot{{Class: ClassStack, Type: sig.Results[0].Type}}
	} else {
		resultRegIdx := 0
		nextResultReg := func() (int, bool) {
			if resultRegIdx >= len(platform.ResultRegs) {
				return 0, false
			}
			r := platform.ResultRegs[resultRegIdx]
			resultRegIdx++
			return r, true
		}
		var unused int64
		for _, r := range sig.Results {
			a.Results = append(a.Results, assignOne(platform, r, nextResultReg, &unused))
		}
	}

	return a
}

// needsHiddenReturnPointer reports whether results must be returned via a
// caller-allocated buffer addressed by a pointer passed in the first parameter
// register (§4.9 "if the aggregate is >16 bytes, use a hidden return pointer").
func needsHiddenReturnPointer(platform Platform, results []clif.ABIParam) bool {
	total := int64(0)
	for _, r := range results {
		total += r.Type.Size()
	}
	return total > platform.MaxRegAggregate
}

func assignOne(platform Platform, p clif.ABIParam, nextReg func() (int, bool), stackOffset *int64) Slot {
	size := p.Type.Size()

	if size <= 8 {
		if r, ok := nextReg(); ok {
			return Slot{Class: ClassRegister, Type: p.Type, Reg: r}
		}
	} else if size <= platform.MaxRegAggregate {
		r1, ok1 := nextReg()
		r2, ok2 := nextReg()
		if ok1 && ok2 {
			return Slot{Class: ClassRegisterPair, Type: p.Type, Reg: r1, Reg2: r2}
		}
		// A pair that couldn't be fully satisfied from registers falls through to
		// the stack as a whole, per §4.9's "else assign a stack offset".
	}

	offset := alignUp(*stackOffset, alignOf(p.Type))
	*stackOffset = offset + size
	return Slot{Class: ClassStack, Type: p.Type, Offset: offset}
}

func alignOf(t clif.Type) int64 { return t.Size() }

func alignUp(off, align int64) int64 {
	if align <= 1 {
		return off
	}
	return (off + align - 1) &^ (align - 1)
}

// Pair bundles a parameter index with its finished Slot, the lo.Tuple2 shape used
// when threading assignments through the lowering pass's worklist.
type Pair = lo.Tuple2[int, Slot]

// Pairs zips a parameter index with each of its slots, mirroring the
// goat project's [lo.Tuple2[int, Parameter]] convention for indexed ABI metadata.
func Pairs(slots []Slot) []Pair {
	return lo.Map(slots, func(s Slot, i int) Pair {
		return lo.Tuple2[int, Slot]{A: i, B: s}
	})
}
