// Package arm64 encodes ARM64 (AArch64) instructions as little-endian 32-bit words
// (§4.6). One function per semantic family; addressing-mode or operation
// discriminators that would otherwise collide into near-duplicate functions are
// passed as an explicit parameter instead, per the family's shared helper
// (encodeLdpStp, encodeLogicalShiftedReg, encodeShiftReg, ...).
package arm64

// Reg is an AArch64 general-purpose register number, 0-31 (31 means SP or XZR
// depending on context, per the instruction).
type Reg uint8

const (
	XZR Reg = 31
	SP  Reg = 31
)

// Cond is a 4-bit AArch64 condition code.
type Cond uint8

const (
	CondEQ Cond = 0x0
	CondNE Cond = 0x1
	CondCS Cond = 0x2
	CondCC Cond = 0x3
	CondMI Cond = 0x4
	CondPL Cond = 0x5
	CondVS Cond = 0x6
	CondVC Cond = 0x7
	CondHI Cond = 0x8
	CondLS Cond = 0x9
	CondGE Cond = 0xA
	CondLT Cond = 0xB
	CondGT Cond = 0xC
	CondLE Cond = 0xD
	CondAL Cond = 0xE
	CondNV Cond = 0xF
)

// Buffer is an appendable little-endian instruction stream.
type Buffer struct {
	bytes []byte
}

func (b *Buffer) Bytes() []byte { return b.bytes }
func (b *Buffer) Len() int      { return len(b.bytes) }

// Emit appends one 32-bit instruction word, little-endian.
func (b *Buffer) Emit(word uint32) {
	b.bytes = append(b.bytes, byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
}

// --- Move-wide: MOVZ/MOVK/MOVN (§4.6 "Move-wide") ---

const (
	movOpcMOVN = 0
	movOpcMOVZ = 2
	movOpcMOVK = 3
)

func encodeMoveWide(opc uint32, sf uint32, rd Reg, imm16 uint32, hw uint32) uint32 {
	return (sf << 31) | (opc << 29) | (0x25 << 23) | ((hw & 3) << 21) | ((imm16 & 0xFFFF) << 5) | uint32(rd)
}

// EncodeMOVZ encodes `MOVZ rd, #imm16, LSL #(shift*16)` (64-bit form).
func EncodeMOVZ(rd Reg, imm16 uint32, shift uint32) uint32 {
	return encodeMoveWide(movOpcMOVZ, 1, rd, imm16, shift)
}

// EncodeMOVK encodes `MOVK rd, #imm16, LSL #(shift*16)` (64-bit form).
func EncodeMOVK(rd Reg, imm16 uint32, shift uint32) uint32 {
	return encodeMoveWide(movOpcMOVK, 1, rd, imm16, shift)
}

// EncodeMOVN encodes `MOVN rd, #imm16, LSL #(shift*16)` (64-bit form).
func EncodeMOVN(rd Reg, imm16 uint32, shift uint32) uint32 {
	return encodeMoveWide(movOpcMOVN, 1, rd, imm16, shift)
}

// --- Arithmetic (register), §4.6 "Arithmetic immediate and register" ---

func encodeAddSubShiftedReg(sf, op, s uint32, shift uint32, rm Reg, imm6 uint32, rn, rd Reg) uint32 {
	return (sf << 31) | (op << 30) | (s << 29) | (0x0B << 24) | ((shift & 3) << 22) |
		(uint32(rm) << 16) | ((imm6 & 0x3F) << 10) | (uint32(rn) << 5) | uint32(rd)
}

// EncodeADDReg encodes `ADD rd, rn, rm` (64-bit, LSL #0).
func EncodeADDReg(rd, rn, rm Reg) uint32 { return encodeAddSubShiftedReg(1, 0, 0, 0, rm, 0, rn, rd) }

// EncodeSUBReg encodes `SUB rd, rn, rm` (64-bit, LSL #0).
func EncodeSUBReg(rd, rn, rm Reg) uint32 { return encodeAddSubShiftedReg(1, 1, 0, 0, rm, 0, rn, rd) }

// EncodeCMPReg encodes `CMP rn, rm` (SUBS XZR, rn, rm).
func EncodeCMPReg(rn, rm Reg) uint32 { return encodeAddSubShiftedReg(1, 1, 1, 0, rm, 0, rn, XZR) }

func encodeAddSubImm(sf, op, s uint32, shift12 uint32, imm12 uint32, rn, rd Reg) uint32 {
	return (sf << 31) | (op << 30) | (s << 29) | (0x22 << 23) | ((shift12 & 1) << 22) |
		((imm12 & 0xFFF) << 10) | (uint32(rn) << 5) | uint32(rd)
}

// EncodeADDImm encodes `ADD rd, rn, #imm12` (64-bit).
func EncodeADDImm(rd, rn Reg, imm12 uint32) uint32 { return encodeAddSubImm(1, 0, 0, 0, imm12, rn, rd) }

// EncodeSUBImm encodes `SUB rd, rn, #imm12` (64-bit).
func EncodeSUBImm(rd, rn Reg, imm12 uint32) uint32 { return encodeAddSubImm(1, 1, 0, 0, imm12, rn, rd) }

// EncodeCMPImm encodes `CMP rn, #imm12` (SUBS XZR, rn, #imm12).
func EncodeCMPImm(rn Reg, imm12 uint32) uint32 { return encodeAddSubImm(1, 1, 1, 0, imm12, rn, XZR) }

// EncodeAddSubExtendedReg encodes the extended-register form of ADD/SUB, used for
// SP-relative arithmetic where the shifted-register form cannot take SP as Rd/Rn
// (§4.6 "Extended-register arithmetic"). option=3 (UXTX) with shift=0 is the common
// 64-bit "just a register" case.
func EncodeAddSubExtendedReg(isSub bool, rd, rn, rm Reg, option uint32, imm3 uint32) uint32 {
	op := uint32(0)
	if isSub {
		op = 1
	}
	return (1 << 31) | (op << 30) | (0 << 29) | (0x0B << 24) | (1 << 21) |
		(uint32(rm) << 16) | ((option & 7) << 13) | ((imm3 & 7) << 10) | (uint32(rn) << 5) | uint32(rd)
}

// --- Multiply / divide, §4.6 "Multiply ..., divide" ---

// EncodeMUL encodes `MUL rd, rn, rm` as `MADD rd, rn, rm, XZR`.
func EncodeMUL(rd, rn, rm Reg) uint32 {
	return (1 << 31) | (0x1B << 24) | (0 << 21) | (uint32(rm) << 16) | (0 << 15) | (uint32(XZR) << 10) | (uint32(rn) << 5) | uint32(rd)
}

func encodeDataProcessing2Source(opcode uint32, rd, rn, rm Reg) uint32 {
	return (1 << 31) | (0 << 29) | (0xD6 << 21) | (uint32(rm) << 16) | ((opcode & 0x3F) << 10) | (uint32(rn) << 5) | uint32(rd)
}

// EncodeSDIV encodes `SDIV rd, rn, rm`.
func EncodeSDIV(rd, rn, rm Reg) uint32 { return encodeDataProcessing2Source(0x03, rd, rn, rm) }

// EncodeUDIV encodes `UDIV rd, rn, rm`.
func EncodeUDIV(rd, rn, rm Reg) uint32 { return encodeDataProcessing2Source(0x02, rd, rn, rm) }

// --- Load/store unsigned offset, §4.6 ---

// Size selects the access width for unsigned-offset load/store.
type Size uint8

const (
	SizeByte Size = iota
	SizeHalf
	SizeWord
	SizeDouble
)

// EncodeLoadStoreUnsignedOffset encodes LDR/STR (unsigned immediate) for the given
// size; load variants zero-extend to 64 bits, per §4.6.
func EncodeLoadStoreUnsignedOffset(size Size, isLoad bool, rt, rn Reg, imm12 uint32) uint32 {
	var sizeBits, opc uint32
	switch size {
	case SizeByte:
		sizeBits = 0
	case SizeHalf:
		sizeBits = 1
	case SizeWord:
		sizeBits = 2
	case SizeDouble:
		sizeBits = 3
	}
	if isLoad {
		opc = 1
	}
	scaledImm := imm12 >> sizeBits
	return (sizeBits << 30) | (0x39 << 24) | (opc << 22) | ((scaledImm & 0xFFF) << 10) | (uint32(rn) << 5) | uint32(rt)
}

// --- Load/store pair, §4.6 "Load/store pair" ---

// LdpStpMode is the addressing mode discriminator shared by the STP/LDP family.
type LdpStpMode uint8

const (
	ModePostIndex LdpStpMode = 0b01
	ModeSignedOffset LdpStpMode = 0b10
	ModePreIndex   LdpStpMode = 0b11
)

// encodeLdpStp is the shared LDP/STP (64-bit GPR) helper; isLoad is the one bit that
// distinguishes a load from a store (§4.6's worked example).
func encodeLdpStp(rt, rt2, rn Reg, offset int32, mode LdpStpMode, isLoad bool) uint32 {
	l := uint32(0)
	if isLoad {
		l = 1
	}
	imm7 := uint32(offset) & 0x7F
	return (2 << 30) | (0b101 << 27) | (0 << 26) | (0 << 25) | (uint32(mode) << 23) | (l << 22) |
		(imm7 << 15) | (uint32(rt2) << 10) | (uint32(rn) << 5) | uint32(rt)
}

// EncodeSTPPre encodes `STP rt, rt2, [rn, #offset]!` (offset in units of 8 bytes).
func EncodeSTPPre(rt, rt2, rn Reg, offset int32) uint32 {
	return encodeLdpStp(rt, rt2, rn, offset, ModePreIndex, false)
}

// EncodeLDPPost encodes `LDP rt, rt2, [rn], #offset` (offset in units of 8 bytes).
func EncodeLDPPost(rt, rt2, rn Reg, offset int32) uint32 {
	return encodeLdpStp(rt, rt2, rn, offset, ModePostIndex, true)
}

// EncodeSTPOffset encodes `STP rt, rt2, [rn, #offset]` (signed offset, no writeback).
func EncodeSTPOffset(rt, rt2, rn Reg, offset int32) uint32 {
	return encodeLdpStp(rt, rt2, rn, offset, ModeSignedOffset, false)
}

// EncodeLDPOffset encodes `LDP rt, rt2, [rn, #offset]` (signed offset, no writeback).
func EncodeLDPOffset(rt, rt2, rn Reg, offset int32) uint32 {
	return encodeLdpStp(rt, rt2, rn, offset, ModeSignedOffset, true)
}

// --- Unconditional / register branches, §4.6 ---

// EncodeB encodes `B #imm26*4`.
func EncodeB(imm26 int32) uint32 { return (0 << 31) | (0x05 << 26) | (uint32(imm26) & 0x3FFFFFF) }

// EncodeBL encodes `BL #imm26*4`.
func EncodeBL(imm26 int32) uint32 { return (1 << 31) | (0x05 << 26) | (uint32(imm26) & 0x3FFFFFF) }

const (
	branchRegOpcBR  = 0x0
	branchRegOpcBLR = 0x1
	branchRegOpcRET = 0x2
)

func encodeBranchReg(opc uint32, rn Reg) uint32 {
	return (0x6B << 25) | (opc << 21) | (0x1F << 16) | (0 << 10) | (uint32(rn) << 5)
}

// EncodeBR encodes `BR rn`.
func EncodeBR(rn Reg) uint32 { return encodeBranchReg(branchRegOpcBR, rn) }

// EncodeBLR encodes `BLR rn`.
func EncodeBLR(rn Reg) uint32 { return encodeBranchReg(branchRegOpcBLR, rn) }

// EncodeRET encodes `RET rn` (defaults to X30 at the call site per convention).
func EncodeRET(rn Reg) uint32 { return encodeBranchReg(branchRegOpcRET, rn) }

// --- Conditional branch / compare-and-branch, §4.6 ---

// EncodeBcond encodes `B.cond #imm19*4`.
func EncodeBcond(cond Cond, imm19 int32) uint32 {
	return (0x2A << 25) | ((uint32(imm19) & 0x7FFFF) << 5) | uint32(cond)
}

// EncodeCBZ encodes `CBZ rt, #imm19*4` (64-bit).
func EncodeCBZ(rt Reg, imm19 int32) uint32 {
	return (1 << 31) | (0x1A << 25) | (0 << 24) | ((uint32(imm19) & 0x7FFFF) << 5) | uint32(rt)
}

// EncodeCBNZ encodes `CBNZ rt, #imm19*4` (64-bit).
func EncodeCBNZ(rt Reg, imm19 int32) uint32 {
	return (1 << 31) | (0x1A << 25) | (1 << 24) | ((uint32(imm19) & 0x7FFFF) << 5) | uint32(rt)
}

// --- Conditional select family, §4.6 ---

func encodeCondSelect(op uint32, s uint32, op2 uint32, rd, rn, rm Reg, cond Cond) uint32 {
	return (1 << 31) | (op << 30) | (s << 29) | (0xD4 << 21) | (uint32(rm) << 16) |
		(uint32(cond) << 12) | (op2 << 10) | (uint32(rn) << 5) | uint32(rd)
}

// EncodeCSEL encodes `CSEL rd, rn, rm, cond`.
func EncodeCSEL(rd, rn, rm Reg, cond Cond) uint32 { return encodeCondSelect(0, 0, 0, rd, rn, rm, cond) }

// EncodeCSINC encodes `CSINC rd, rn, rm, cond`.
func EncodeCSINC(rd, rn, rm Reg, cond Cond) uint32 { return encodeCondSelect(0, 0, 1, rd, rn, rm, cond) }

// invertCond flips a condition's low bit, the trick CSET uses to turn "set if true"
// into CSINC's "increment (from 0) if condition fails" (§4.6 "Conditional set").
func invertCond(c Cond) Cond {
	if c == CondAL || c == CondNV {
		return c
	}
	return c ^ 1
}

// EncodeCSET encodes `CSET rd, cond` as `CSINC rd, XZR, XZR, invert(cond)`.
func EncodeCSET(rd Reg, cond Cond) uint32 {
	return EncodeCSINC(rd, XZR, XZR, invertCond(cond))
}

// --- Logical shifted register, §4.6 ---

// LogicalOp selects AND/ORR/EOR/ANDS via their 2-bit opc field.
type LogicalOp uint8

const (
	LogicalAND  LogicalOp = 0
	LogicalORR  LogicalOp = 1
	LogicalEOR  LogicalOp = 2
	LogicalANDS LogicalOp = 3
)

// EncodeLogicalShiftedReg encodes the shifted-register form of AND/ORR/EOR/ANDS
// (64-bit, LSL #0): `op rd, rn, rm`.
func EncodeLogicalShiftedReg(op LogicalOp, rd, rn, rm Reg) uint32 {
	return (1 << 31) | (uint32(op) << 29) | (0x0A << 24) | (0 << 22) | (uint32(rm) << 16) |
		(0 << 10) | (uint32(rn) << 5) | uint32(rd)
}

// --- Variable shift, §4.6 ---

// ShiftOp selects LSL/LSR/ASR/ROR via the data-processing-2-source opcode's low bits.
type ShiftOp uint8

const (
	ShiftLSL ShiftOp = 0x08
	ShiftLSR ShiftOp = 0x09
	ShiftASR ShiftOp = 0x0A
	ShiftROR ShiftOp = 0x0B
)

// EncodeShiftReg encodes the variable-shift data-processing-2-source form:
// `op rd, rn, rm` (LSLV/LSRV/ASRV/RORV).
func EncodeShiftReg(op ShiftOp, rd, rn, rm Reg) uint32 {
	return encodeDataProcessing2Source(uint32(op), rd, rn, rm)
}

// --- Sign/zero extension via bitfield move, §4.6 ---

func encodeBitfield(opc uint32, rd, rn Reg, immr, imms uint32) uint32 {
	return (1 << 31) | (opc << 29) | (0x26 << 23) | (1 << 22) | ((immr & 0x3F) << 16) |
		((imms & 0x3F) << 10) | (uint32(rn) << 5) | uint32(rd)
}

// EncodeSBFM encodes `SBFM rd, rn, #immr, #imms` (the sign-extension form used with
// immr=0, imms=width-1).
func EncodeSBFM(rd, rn Reg, immr, imms uint32) uint32 { return encodeBitfield(0, rd, rn, immr, imms) }

// EncodeUBFM encodes `UBFM rd, rn, #immr, #imms` (the zero-extension form used with
// immr=0, imms=width-1).
func EncodeUBFM(rd, rn Reg, immr, imms uint32) uint32 { return encodeBitfield(2, rd, rn, immr, imms) }

// --- PC-relative addressing, §4.6 ---

func encodeAdr(op uint32, rd Reg, imm21 int32) uint32 {
	u := uint32(imm21)
	immlo := u & 3
	immhi := (u >> 2) & 0x7FFFF
	return (op << 31) | (immlo << 29) | (0x10 << 24) | (immhi << 5) | uint32(rd)
}

// EncodeADR encodes `ADR rd, #imm21` (byte-granular PC-relative).
func EncodeADR(rd Reg, imm21 int32) uint32 { return encodeAdr(0, rd, imm21) }

// EncodeADRP encodes `ADRP rd, #imm21` (imm21 counts 4KiB pages).
func EncodeADRP(rd Reg, imm21 int32) uint32 { return encodeAdr(1, rd, imm21) }

// EncodeNOP encodes the canonical `NOP` hint instruction.
func EncodeNOP() uint32 { return 0xD503201F }
