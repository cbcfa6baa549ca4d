package arm64

import (
	"fmt"

	"github.com/cot-lang/cotc/internal/lowerssa"
	"github.com/cot-lang/cotc/internal/objfile"
	"github.com/cot-lang/cotc/internal/regalloc"
	"github.com/cot-lang/cotc/internal/stackalloc"
)

// General-purpose register names beyond XZR/SP (§4.6 only names those two since
// every other encoder takes a plain Reg number; this lowering needs names for the
// AAPCS64 argument/frame registers it actually assigns meaning to).
const (
	X0 Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	FP // X29, the frame-record pointer
	LR // X30, the link register
)

// Target returns the AAPCS64 register-allocation Target for this architecture
// (§4.9). Allocatable is restricted to caller-saved registers X0-X14, the same
// simplification amd64.Target makes and for the same reason: no callee-saved
// register is ever handed out, so this lowering never needs a clobbered-register
// save/restore sequence in the prologue/epilogue. X15 is held out of Allocatable,
// reserved as the shuffle-cycle-breaking SpillTemp; X16-X18 are left alone
// entirely (IP0/IP1/platform register, conventionally not general-purpose); X29/X30
// are the frame pointer and link register this lowering manages directly.
func Target() regalloc.Target {
	var allocatable, callerSaved regalloc.RegMask
	for _, r := range []Reg{X0, X1, X2, X3, X4, X5, X6, X7, X8, X9, X10, X11, X12, X13, X14} {
		allocatable = allocatable.Add(regalloc.Reg(r))
		callerSaved = callerSaved.Add(regalloc.Reg(r))
	}
	callerSaved = callerSaved.Add(regalloc.Reg(X15))

	return regalloc.Target{
		Allocatable: allocatable,
		CallerSaved: callerSaved,
		CalleeSaved: 0,
		ArgRegs: []regalloc.Reg{
			regalloc.Reg(X0), regalloc.Reg(X1), regalloc.Reg(X2), regalloc.Reg(X3),
			regalloc.Reg(X4), regalloc.Reg(X5), regalloc.Reg(X6), regalloc.Reg(X7),
		},
		ReturnRegs: []regalloc.Reg{regalloc.Reg(X0)},
		SpillTemp:  regalloc.Reg(X15),
		NumRegs:    32,
	}
}

// frameReg is the register CompileFunc addresses locals and spill slots through.
// Mirroring amd64's lowering, the prologue fixes it for the function's entire body.
const frameReg = SP

// branchKind distinguishes the fixed-up branch forms this lowering emits; ARM64
// immediates are packed into the instruction word alongside its opcode bits (unlike
// amd64's standalone rel32 field), so patching a forward reference means
// re-encoding the whole word, not just splicing in bytes.
type branchKind int

const (
	branchUnconditional branchKind = iota
	branchCBZ
	branchCBNZ
)

type branchFixup struct {
	wordOffset int
	kind       branchKind
	reg        Reg
	target     *lowerssa.Block
}

type lowering struct {
	frame *stackalloc.Frame
	buf   Buffer

	labels map[*lowerssa.Block]int
	fixups []branchFixup
	relocs []objfile.Relocation
}

// CompileFunc is arm64's counterpart to amd64.CompileFunc: same allocator/stack
// allocator wiring, same opcode coverage (§8.3 scenarios A, B, F), AAPCS64 in place
// of System V. See amd64.CompileFunc's doc comment for the scope this shares;
// div/rem/shift and the aggregate/load/store opcodes are left unhandled here too.
func CompileFunc(f *lowerssa.Func, name string, locals []stackalloc.Local) (objfile.Function, error) {
	lowerssa.SplitCriticalEdges(f)
	nextCall := lowerssa.ComputeLiveness(f)
	alloc := regalloc.NewAllocator(Target())
	alloc.Run(f, nextCall)
	frame := stackalloc.Allocate(f.Blocks, alloc.SpillLive, locals)

	lw := &lowering{frame: frame, labels: make(map[*lowerssa.Block]int)}
	lw.emitPrologue()
	for _, blk := range f.Blocks {
		lw.labels[blk] = lw.buf.Len()
		for _, v := range blk.Values {
			if err := lw.emitValue(v); err != nil {
				return objfile.Function{}, fmt.Errorf("lowering %s: %w", name, err)
			}
		}
	}
	lw.patchBranches()
	return objfile.Function{Name: name, Code: lw.buf.Bytes(), Relocs: lw.relocs}, nil
}

// emitPrologue implements §3.5's frame shape for arm64: `stp x29, x30, [sp, #-16]!`
// saves the caller's frame record (offsets to EncodeSTPPre are in units of 8 bytes,
// so -2 means -16); `mov x29, sp` (ADD Xd, SP, #0, the standard alias) then anchors
// the frame-record pointer at the post-push sp; `sub sp, sp, #frameSize` opens the
// locals-and-spills region below it. Doing the full stackalloc.Frame.Size
// subtraction only after the frame record is already pushed keeps the record's
// physical address exactly frameSize bytes above the final sp — one byte past the
// last valid local offset, the same invariant amd64's prologue relies on.
func (lw *lowering) emitPrologue() {
	lw.buf.Emit(EncodeSTPPre(FP, LR, SP, -2))
	lw.buf.Emit(EncodeADDImm(FP, SP, 0))
	size := lw.frame.Size
	if size > 0 {
		lw.buf.Emit(EncodeSUBImm(SP, SP, uint32(size)))
	}
}

// emitEpilogue undoes emitPrologue: `mov sp, x29; ldp x29, x30, [sp], #16; ret`.
func (lw *lowering) emitEpilogue() {
	lw.buf.Emit(EncodeADDImm(SP, FP, 0))
	lw.buf.Emit(EncodeLDPPost(FP, LR, SP, 2))
	lw.buf.Emit(EncodeRET(LR))
}

func (lw *lowering) reg(v *lowerssa.Value) (Reg, bool) {
	if v.Home.Assigned && v.Home.InReg {
		return Reg(v.Home.Reg), true
	}
	return 0, false
}

func (lw *lowering) slot(v *lowerssa.Value) (Reg, int32, bool) {
	off, ok := lw.frame.SlotOffsets[v]
	if !ok {
		return 0, 0, false
	}
	return frameReg, int32(off), true
}

func intCC(cc lowerssa.IntCC) (Cond, bool) {
	switch cc {
	case lowerssa.IntCCEqual:
		return CondEQ, true
	case lowerssa.IntCCNotEqual:
		return CondNE, true
	case lowerssa.IntCCSignedLessThan:
		return CondLT, true
	case lowerssa.IntCCSignedGreaterThanOrEqual:
		return CondGE, true
	case lowerssa.IntCCSignedGreaterThan:
		return CondGT, true
	case lowerssa.IntCCSignedLessThanOrEqual:
		return CondLE, true
	case lowerssa.IntCCUnsignedLessThan:
		return CondCC, true
	case lowerssa.IntCCUnsignedGreaterThanOrEqual:
		return CondCS, true
	case lowerssa.IntCCUnsignedGreaterThan:
		return CondHI, true
	case lowerssa.IntCCUnsignedLessThanOrEqual:
		return CondLS, true
	}
	return 0, false
}

func (lw *lowering) emitValue(v *lowerssa.Value) error {
	switch v.Op {
	case lowerssa.OpArg:
		return nil

	case lowerssa.OpConstInt:
		dst, ok := lw.reg(v)
		if !ok {
			return nil
		}
		lw.emitConst(dst, uint64(v.Aux))
		return nil

	case lowerssa.OpAdd, lowerssa.OpSub:
		dst, lhs, rhs, ok := lw.binaryOperands(v)
		if !ok {
			return nil
		}
		if v.Op == lowerssa.OpAdd {
			lw.buf.Emit(EncodeADDReg(dst, lhs, rhs))
		} else {
			lw.buf.Emit(EncodeSUBReg(dst, lhs, rhs))
		}
		return nil

	case lowerssa.OpAnd, lowerssa.OpOr, lowerssa.OpXor:
		dst, lhs, rhs, ok := lw.binaryOperands(v)
		if !ok {
			return nil
		}
		var op LogicalOp
		switch v.Op {
		case lowerssa.OpAnd:
			op = LogicalAND
		case lowerssa.OpOr:
			op = LogicalORR
		case lowerssa.OpXor:
			op = LogicalEOR
		}
		lw.buf.Emit(EncodeLogicalShiftedReg(op, dst, lhs, rhs))
		return nil

	case lowerssa.OpMul:
		dst, lhs, rhs, ok := lw.binaryOperands(v)
		if !ok {
			return nil
		}
		lw.buf.Emit(EncodeMUL(dst, lhs, rhs))
		return nil

	case lowerssa.OpIcmp:
		if len(v.Args) != 2 {
			return fmt.Errorf("icmp: expected 2 args, got %d", len(v.Args))
		}
		lhs, rhs, ok := lw.regPair(v.Args[0], v.Args[1])
		if !ok {
			return nil
		}
		lw.buf.Emit(EncodeCMPReg(lhs, rhs))
		if dst, ok := lw.reg(v); ok {
			cc, ok := intCC(lowerssa.IntCC(v.Aux))
			if !ok {
				return fmt.Errorf("icmp: unknown condition %d", v.Aux)
			}
			lw.buf.Emit(EncodeCSET(dst, cc))
		}
		return nil

	case lowerssa.OpCopy:
		src := Reg(v.Aux)
		dst, ok := lw.reg(v)
		if ok && dst != src {
			lw.buf.Emit(EncodeADDImm(dst, src, 0))
		}
		return nil

	case lowerssa.OpLoadReg:
		if len(v.Args) != 1 {
			return fmt.Errorf("load_reg: expected 1 arg, got %d", len(v.Args))
		}
		dst, ok := lw.reg(v)
		if !ok {
			return fmt.Errorf("load_reg: reload has no register home")
		}
		base, off, ok := lw.slot(v.Args[0])
		if !ok {
			return fmt.Errorf("load_reg: spilled value %d has no stack slot", v.Args[0].ID())
		}
		lw.buf.Emit(EncodeLoadStoreUnsignedOffset(SizeDouble, true, dst, base, uint32(off)))
		return nil

	case lowerssa.OpStoreReg:
		if len(v.Args) != 1 {
			return fmt.Errorf("store_reg: expected 1 arg, got %d", len(v.Args))
		}
		src := Reg(v.Aux)
		base, off, ok := lw.slot(v.Args[0])
		if !ok {
			return fmt.Errorf("store_reg: spilled value %d has no stack slot", v.Args[0].ID())
		}
		lw.buf.Emit(EncodeLoadStoreUnsignedOffset(SizeDouble, false, src, base, uint32(off)))
		return nil

	case lowerssa.OpJump:
		blk := v.Block()
		if len(blk.Succs) != 1 {
			return fmt.Errorf("jump: block has %d successors, want 1", len(blk.Succs))
		}
		lw.emitB(blk.Succs[0])
		return nil

	case lowerssa.OpBrz, lowerssa.OpBrnz:
		return lw.emitCondBranch(v)

	case lowerssa.OpStaticCall:
		return lw.emitStaticCall(v)

	case lowerssa.OpReturn:
		if len(v.Args) == 1 {
			if src, ok := lw.reg(v.Args[0]); ok && src != X0 {
				lw.buf.Emit(EncodeADDImm(X0, src, 0))
			}
		}
		lw.emitEpilogue()
		return nil

	default:
		return fmt.Errorf("unsupported lowerssa opcode %s", v.Op)
	}
}

// emitConst materializes an arbitrary 64-bit constant with up to four
// MOVZ/MOVK instructions, one per 16-bit halfword (§4.6 "Move-wide").
func (lw *lowering) emitConst(dst Reg, imm uint64) {
	lw.buf.Emit(EncodeMOVZ(dst, uint32(imm&0xFFFF), 0))
	for shift := uint32(1); shift < 4; shift++ {
		half := uint32((imm >> (16 * shift)) & 0xFFFF)
		if half != 0 {
			lw.buf.Emit(EncodeMOVK(dst, half, shift))
		}
	}
}

func (lw *lowering) binaryOperands(v *lowerssa.Value) (dst, lhs, rhs Reg, ok bool) {
	if len(v.Args) != 2 {
		return 0, 0, 0, false
	}
	d, ok1 := lw.reg(v)
	l, ok2 := lw.reg(v.Args[0])
	r, ok3 := lw.reg(v.Args[1])
	if !ok1 || !ok2 || !ok3 {
		return 0, 0, 0, false
	}
	return d, l, r, true
}

func (lw *lowering) regPair(a, b *lowerssa.Value) (Reg, Reg, bool) {
	ra, ok1 := lw.reg(a)
	rb, ok2 := lw.reg(b)
	return ra, rb, ok1 && ok2
}

func (lw *lowering) emitB(target *lowerssa.Block) {
	pos := lw.buf.Len()
	lw.buf.Emit(0)
	lw.fixups = append(lw.fixups, branchFixup{wordOffset: pos, kind: branchUnconditional, target: target})
}

// emitCondBranch lowers brz/brnz using the same Succs convention as amd64's
// lowering: Succs[0] is the branch target taken when the condition holds,
// Succs[1] is always emitted as an explicit unconditional branch.
func (lw *lowering) emitCondBranch(v *lowerssa.Value) error {
	if len(v.Args) != 1 {
		return fmt.Errorf("%s: expected 1 arg, got %d", v.Op, len(v.Args))
	}
	blk := v.Block()
	if len(blk.Succs) != 2 {
		return fmt.Errorf("%s: block has %d successors, want 2", v.Op, len(blk.Succs))
	}
	cond, ok := lw.reg(v.Args[0])
	if !ok {
		return fmt.Errorf("%s: condition value has no register home", v.Op)
	}
	pos := lw.buf.Len()
	lw.buf.Emit(0)
	kind := branchCBNZ
	if v.Op == lowerssa.OpBrz {
		kind = branchCBZ
	}
	lw.fixups = append(lw.fixups, branchFixup{wordOffset: pos, kind: kind, reg: cond, target: blk.Succs[0]})
	lw.emitB(blk.Succs[1])
	return nil
}

// emitStaticCall lowers a direct call via BL. As with amd64's lowering, arguments
// are expected to already sit in their AAPCS64 argument registers by construction
// of the allocator's OpArg placement.
func (lw *lowering) emitStaticCall(v *lowerssa.Value) error {
	name, ok := v.AuxTag.(string)
	if !ok {
		return fmt.Errorf("static_call: missing callee symbol")
	}
	pos := lw.buf.Len()
	lw.buf.Emit(EncodeBL(0))
	lw.relocs = append(lw.relocs, objfile.Relocation{
		Offset: uint32(pos),
		Symbol: name,
		Kind:   objfile.RelocPCRel32,
	})
	return nil
}

// patchBranches resolves every recorded branchFixup now that every block's start
// offset is known. Unlike amd64's rel32 field, an ARM64 branch's displacement is
// packed into the same word as its opcode, so each fixup re-encodes the full word
// rather than splicing bytes into a standalone immediate field.
func (lw *lowering) patchBranches() {
	for _, fx := range lw.fixups {
		targetOff, ok := lw.labels[fx.target]
		if !ok {
			continue
		}
		deltaWords := int32((targetOff - fx.wordOffset) / 4)
		var word uint32
		switch fx.kind {
		case branchUnconditional:
			word = EncodeB(deltaWords)
		case branchCBZ:
			word = EncodeCBZ(fx.reg, deltaWords)
		case branchCBNZ:
			word = EncodeCBNZ(fx.reg, deltaWords)
		}
		lw.buf.bytes[fx.wordOffset+0] = byte(word)
		lw.buf.bytes[fx.wordOffset+1] = byte(word >> 8)
		lw.buf.bytes[fx.wordOffset+2] = byte(word >> 16)
		lw.buf.bytes[fx.wordOffset+3] = byte(word >> 24)
	}
}
