// Package amd64 encodes variable-length AMD64 (x86-64) instructions (§4.7): REX
// prefix, opcode, ModR/M, optional SIB, optional displacement, optional immediate.
package amd64

// Reg is an x86-64 general-purpose register number, 0-15 (RAX..R15 in the standard
// numbering; R8-R15 require a REX prefix to address).
type Reg uint8

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
	R8  Reg = 8
	R9  Reg = 9
	R10 Reg = 10
	R11 Reg = 11
	R12 Reg = 12
	R13 Reg = 13
	R14 Reg = 14
	R15 Reg = 15
)

func (r Reg) low3() byte  { return byte(r) & 7 }
func (r Reg) needsExt() bool { return r >= 8 }

// Cond is a one of the 16 x86 condition codes (Jcc/SETcc/CMOVcc's low nibble).
type Cond uint8

const (
	CondO  Cond = 0x0
	CondNO Cond = 0x1
	CondB  Cond = 0x2 // aka C, NAE
	CondAE Cond = 0x3 // aka NB, NC
	CondE  Cond = 0x4 // aka Z
	CondNE Cond = 0x5 // aka NZ
	CondBE Cond = 0x6 // aka NA
	CondA  Cond = 0x7 // aka NBE
	CondS  Cond = 0x8
	CondNS Cond = 0x9
	CondP  Cond = 0xA // aka PE
	CondNP Cond = 0xB // aka PO
	CondL  Cond = 0xC // aka NGE
	CondGE Cond = 0xD // aka NL
	CondLE Cond = 0xE // aka NG
	CondG  Cond = 0xF // aka NLE
)

// Buffer is an appendable variable-length instruction stream.
type Buffer struct {
	bytes []byte
}

func (b *Buffer) Bytes() []byte { return b.bytes }
func (b *Buffer) Len() int      { return len(b.bytes) }

func (b *Buffer) emit(bs ...byte) { b.bytes = append(b.bytes, bs...) }

func (b *Buffer) emitLE32(v uint32) {
	b.emit(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (b *Buffer) emitLE64(v uint64) {
	for i := 0; i < 8; i++ {
		b.emit(byte(v >> (8 * i)))
	}
}

// rex builds a REX prefix byte (0100WRXB); present returns false when no bit is set
// and the register operands are all in 0-7 without needing the uniform low-byte
// encoding (§4.7 "REX prefix").
func rex(w, r, x, bb bool) (byte, bool) {
	if !w && !r && !x && !bb {
		return 0, false
	}
	v := byte(0x40)
	if w {
		v |= 1 << 3
	}
	if r {
		v |= 1 << 2
	}
	if x {
		v |= 1 << 1
	}
	if bb {
		v |= 1
	}
	return v, true
}

func modrmByte(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

// regDirectModRM builds a register-direct (mod=11) ModR/M byte.
func regDirectModRM(reg, rm Reg) byte { return modrmByte(3, byte(reg), byte(rm)) }

// --- MOV, §4.7 "MOV r64,imm64", "MOV r64,r64 / ..." ---

// EncodeMOVRegImm64 encodes `MOV r64, imm64` as REX.W + B8+rd + imm64 (10 bytes).
func EncodeMOVRegImm64(dst Reg, imm uint64) []byte {
	var b Buffer
	r, _ := rex(true, false, false, dst.needsExt())
	b.emit(r, 0xB8+dst.low3())
	b.emitLE64(imm)
	return b.Bytes()
}

// EncodeMOVRegReg encodes `MOV dst, src` (register to register, 64-bit) using the
// store-direction opcode 0x89 (MOV r/m64, r64).
func EncodeMOVRegReg(dst, src Reg) []byte {
	var b Buffer
	r, ok := rex(true, src.needsExt(), false, dst.needsExt())
	if ok {
		b.emit(r)
	} else {
		b.emit(0x48) // REX.W is mandatory for the 64-bit operand size
	}
	b.emit(0x89, modrmByte(3, byte(src), byte(dst)))
	return b.Bytes()
}

// Mem describes a [base + disp] or [base + index*scale + disp] memory operand.
// HasIndex selects the SIB-using form; Scale is 1/2/4/8.
type Mem struct {
	Base     Reg
	HasIndex bool
	Index    Reg
	Scale    byte
	Disp     int32
	RIPRel   bool
}

// encodeMemOperand appends the ModR/M (+SIB +disp) bytes addressing m with the
// given reg field, and reports whether the base/index registers required REX.X/B.
func encodeMemOperand(b *Buffer, reg Reg, m Mem) (needsX, needsB bool) {
	if m.RIPRel {
		b.emit(modrmByte(0, byte(reg), 5))
		b.emitLE32(uint32(m.Disp))
		return false, false
	}

	baseLow := m.Base.low3()
	needsSIB := baseLow == 4 || m.HasIndex // RSP/R12 as base always need a SIB byte

	var mod byte
	switch {
	case m.Disp == 0 && baseLow != 5: // RBP/R13 as base can't use mod=00 (collides with RIP-relative / disp32-only)
		mod = 0
	case m.Disp >= -128 && m.Disp <= 127:
		mod = 1
	default:
		mod = 2
	}

	rm := byte(4) // 100 = SIB follows
	if !needsSIB {
		rm = byte(m.Base)
	}
	b.emit(modrmByte(mod, byte(reg), rm))

	if needsSIB {
		scaleBits := byte(0)
		switch m.Scale {
		case 2:
			scaleBits = 1
		case 4:
			scaleBits = 2
		case 8:
			scaleBits = 3
		}
		index := byte(4) // 100 = no index
		if m.HasIndex {
			index = byte(m.Index)
		}
		b.emit((scaleBits << 6) | ((index & 7) << 3) | (byte(m.Base) & 7))
		needsX = m.HasIndex && m.Index.needsExt()
	}

	if mod == 1 {
		b.emit(byte(m.Disp))
	} else if mod == 2 || (mod == 0 && baseLow == 5) {
		b.emitLE32(uint32(m.Disp))
	}
	return needsX, m.Base.needsExt()
}

// EncodeMOVRegMem encodes `MOV dst, [mem]` (load, 64-bit): REX.W + 8B /r.
func EncodeMOVRegMem(dst Reg, m Mem) []byte {
	return encodeRegMemOp(0x48, 0x8B, dst, m)
}

// EncodeMOVMemReg encodes `MOV [mem], src` (store, 64-bit): REX.W + 89 /r.
func EncodeMOVMemReg(m Mem, src Reg) []byte {
	return encodeRegMemOp(0x48, 0x89, src, m)
}

func encodeRegMemOp(forceREX byte, opcode byte, reg Reg, m Mem) []byte {
	var b Buffer
	needsX, needsB := peekMemExt(m)
	r, ok := rex(forceREX&0x08 != 0, reg.needsExt(), needsX, needsB)
	if ok {
		b.emit(r)
	} else if forceREX != 0 {
		b.emit(forceREX)
	}
	b.emit(opcode)
	encodeMemOperand(&b, reg, m)
	return b.Bytes()
}

func peekMemExt(m Mem) (needsX, needsB bool) {
	if m.RIPRel {
		return false, false
	}
	needsB = m.Base.needsExt()
	needsX = m.HasIndex && m.Index.needsExt()
	return
}

// --- XOR r,r, §4.7 "XOR r,r (efficient zeroing)" ---

// EncodeXorRegReg32 encodes the 32-bit `XOR dst, src` idiom used for zeroing; the
// processor's implicit zero-extend to 64 bits makes the REX.W prefix unnecessary.
func EncodeXorRegReg32(dst, src Reg) []byte {
	var b Buffer
	if r, ok := rex(false, src.needsExt(), false, dst.needsExt()); ok {
		b.emit(r)
	}
	b.emit(0x31, modrmByte(3, byte(src), byte(dst)))
	return b.Bytes()
}

// --- PUSH/POP, §4.7 ---

// EncodePUSH encodes `PUSH r64`.
func EncodePUSH(r Reg) []byte {
	var b Buffer
	if rr, ok := rex(false, false, false, r.needsExt()); ok {
		b.emit(rr)
	}
	b.emit(0x50 + r.low3())
	return b.Bytes()
}

// EncodePOP encodes `POP r64`.
func EncodePOP(r Reg) []byte {
	var b Buffer
	if rr, ok := rex(false, false, false, r.needsExt()); ok {
		b.emit(rr)
	}
	b.emit(0x58 + r.low3())
	return b.Bytes()
}

// --- Arithmetic/logic r64,r64 and r64,imm, §4.7 ---

// ArithOp selects the ADD/OR/AND/SUB/XOR/CMP family by its 3-bit group number (the
// /digit used by the imm-group opcodes 0x81/0x83, and op*8+1 as the direct opcode
// of the register form).
type ArithOp byte

const (
	ArithADD ArithOp = 0
	ArithOR  ArithOp = 1
	ArithAND ArithOp = 4
	ArithSUB ArithOp = 5
	ArithXOR ArithOp = 6
	ArithCMP ArithOp = 7
)

// EncodeArithRegReg encodes `op dst, src` (64-bit register form): REX.W + (op*8+1) /r.
func EncodeArithRegReg(op ArithOp, dst, src Reg) []byte {
	var b Buffer
	r, ok := rex(true, src.needsExt(), false, dst.needsExt())
	if ok {
		b.emit(r)
	} else {
		b.emit(0x48)
	}
	b.emit(byte(op)*8+1, modrmByte(3, byte(src), byte(dst)))
	return b.Bytes()
}

// EncodeArithRegImm encodes `op dst, imm` (64-bit), choosing the sign-extended
// 8-bit immediate form (0x83 /digit) when imm fits, else the 32-bit form (0x81
// /digit), per §4.7's "sign-extended 8- or 32-bit immediate forms".
func EncodeArithRegImm(op ArithOp, dst Reg, imm int32) []byte {
	var b Buffer
	r, ok := rex(true, false, false, dst.needsExt())
	if ok {
		b.emit(r)
	} else {
		b.emit(0x48)
	}
	if imm >= -128 && imm <= 127 {
		b.emit(0x83, modrmByte(3, byte(op), byte(dst)), byte(imm))
	} else {
		b.emit(0x81, modrmByte(3, byte(op), byte(dst)))
		b.emitLE32(uint32(imm))
	}
	return b.Bytes()
}

// --- IMUL, §4.7 "IMUL r64,r64 (three-byte 0F AF /r)" ---

// EncodeIMUL encodes `IMUL dst, src` as REX.W + 0F AF /r.
func EncodeIMUL(dst, src Reg) []byte {
	var b Buffer
	r, ok := rex(true, dst.needsExt(), false, src.needsExt())
	if ok {
		b.emit(r)
	} else {
		b.emit(0x48)
	}
	b.emit(0x0F, 0xAF, regDirectModRM(dst, src))
	return b.Bytes()
}

// --- CQO / IDIV / DIV, §4.7 ---

// EncodeCQO encodes `CQO` (sign-extend RAX into RDX:RAX).
func EncodeCQO() []byte { return []byte{0x48, 0x99} }

// EncodeIDIV encodes `IDIV r64` (F7 /7): caller places the dividend in RAX (and its
// sign extension in RDX via CQO) beforehand.
func EncodeIDIV(r Reg) []byte { return encodeF7Group(7, r) }

// EncodeDIV encodes `DIV r64` (F7 /6): caller must zero RDX beforehand.
func EncodeDIV(r Reg) []byte { return encodeF7Group(6, r) }

func encodeF7Group(digit byte, r Reg) []byte {
	var b Buffer
	rr, ok := rex(true, false, false, r.needsExt())
	if ok {
		b.emit(rr)
	} else {
		b.emit(0x48)
	}
	b.emit(0xF7, modrmByte(3, digit, byte(r)))
	return b.Bytes()
}

// --- CMP, TEST, conditional jumps, §4.7 ---

// EncodeCMPRegReg encodes `CMP dst, src` (64-bit).
func EncodeCMPRegReg(dst, src Reg) []byte { return EncodeArithRegReg(ArithCMP, dst, src) }

// EncodeTESTRegReg encodes `TEST dst, src` (64-bit): REX.W + 85 /r.
func EncodeTESTRegReg(dst, src Reg) []byte {
	var b Buffer
	r, ok := rex(true, src.needsExt(), false, dst.needsExt())
	if ok {
		b.emit(r)
	} else {
		b.emit(0x48)
	}
	b.emit(0x85, modrmByte(3, byte(src), byte(dst)))
	return b.Bytes()
}

// EncodeJccRel8 encodes `Jcc rel8` (0x70+cc).
func EncodeJccRel8(cc Cond, rel8 int8) []byte {
	return []byte{0x70 + byte(cc), byte(rel8)}
}

// EncodeJccRel32 encodes `Jcc rel32` (0F 0x80+cc).
func EncodeJccRel32(cc Cond, rel32 int32) []byte {
	var b Buffer
	b.emit(0x0F, 0x80+byte(cc))
	b.emitLE32(uint32(rel32))
	return b.Bytes()
}

// EncodeJMPRel32 encodes `JMP rel32` (E9).
func EncodeJMPRel32(rel32 int32) []byte {
	var b Buffer
	b.emit(0xE9)
	b.emitLE32(uint32(rel32))
	return b.Bytes()
}

// EncodeCALLRel32 encodes `CALL rel32` (E8).
func EncodeCALLRel32(rel32 int32) []byte {
	var b Buffer
	b.emit(0xE8)
	b.emitLE32(uint32(rel32))
	return b.Bytes()
}

// EncodeRET encodes `RET`.
func EncodeRET() []byte { return []byte{0xC3} }

// --- SETcc / CMOVcc, §4.7 ---

// EncodeSETcc encodes `SETcc r/m8`: 0F 90+cc /0. A REX prefix (even an otherwise
// empty one) is required to address SIL/DIL/BPL/SPL as 8-bit registers instead of
// the legacy AH/CH/DH/BH aliases (§4.7 "REX prefix").
func EncodeSETcc(cc Cond, dst Reg) []byte {
	var b Buffer
	needsUniformLow := dst >= RSP && dst <= RDI
	r, ok := rex(false, false, false, dst.needsExt())
	if ok {
		b.emit(r)
	} else if needsUniformLow {
		b.emit(0x40)
	}
	b.emit(0x0F, 0x90+byte(cc), modrmByte(3, 0, byte(dst)))
	return b.Bytes()
}

// EncodeCMOVcc encodes `CMOVcc dst, src` (64-bit): REX.W + 0F 40+cc /r.
func EncodeCMOVcc(cc Cond, dst, src Reg) []byte {
	var b Buffer
	r, ok := rex(true, dst.needsExt(), false, src.needsExt())
	if ok {
		b.emit(r)
	} else {
		b.emit(0x48)
	}
	b.emit(0x0F, 0x40+byte(cc), regDirectModRM(dst, src))
	return b.Bytes()
}

// --- Sign/zero extension, §4.7 ---

// EncodeMOVZXByte encodes `MOVZX dst, r/m8` (64-bit dest): REX.W + 0F B6 /r.
func EncodeMOVZXByte(dst, src Reg) []byte { return encode0FExt(0xB6, dst, src) }

// EncodeMOVZXWord encodes `MOVZX dst, r/m16` (64-bit dest): REX.W + 0F B7 /r.
func EncodeMOVZXWord(dst, src Reg) []byte { return encode0FExt(0xB7, dst, src) }

// EncodeMOVSXByte encodes `MOVSX dst, r/m8` (64-bit dest): REX.W + 0F BE /r.
func EncodeMOVSXByte(dst, src Reg) []byte { return encode0FExt(0xBE, dst, src) }

// EncodeMOVSXWord encodes `MOVSX dst, r/m16` (64-bit dest): REX.W + 0F BF /r.
func EncodeMOVSXWord(dst, src Reg) []byte { return encode0FExt(0xBF, dst, src) }

func encode0FExt(opcode byte, dst, src Reg) []byte {
	var b Buffer
	r, ok := rex(true, dst.needsExt(), false, src.needsExt())
	if ok {
		b.emit(r)
	} else {
		b.emit(0x48)
	}
	b.emit(0x0F, opcode, regDirectModRM(dst, src))
	return b.Bytes()
}

// EncodeMOVSXD encodes `MOVSXD dst, r/m32` (32-to-64 sign extend): REX.W + 63 /r.
func EncodeMOVSXD(dst, src Reg) []byte {
	var b Buffer
	r, ok := rex(true, dst.needsExt(), false, src.needsExt())
	if ok {
		b.emit(r)
	} else {
		b.emit(0x48)
	}
	b.emit(0x63, regDirectModRM(dst, src))
	return b.Bytes()
}

// --- LEA, §4.7 ---

// EncodeLEA encodes `LEA dst, [mem]` (64-bit): REX.W + 8D /r.
func EncodeLEA(dst Reg, m Mem) []byte {
	return encodeRegMemOp(0x48, 0x8D, dst, m)
}

// EncodeLEARIPRelative encodes `LEA dst, [rip+disp32]`, the addressing form used
// for globals and string-literal references (§4.7 "RIP-relative LEA").
func EncodeLEARIPRelative(dst Reg, disp32 int32) []byte {
	return EncodeLEA(dst, Mem{RIPRel: true, Disp: disp32})
}

// --- Multi-byte NOPs, §4.7 ---

// multiByteNOPs are Intel's recommended padding sequences, indexed by length 1-9.
var multiByteNOPs = [][]byte{
	{},
	{0x90},
	{0x66, 0x90},
	{0x0F, 0x1F, 0x00},
	{0x0F, 0x1F, 0x40, 0x00},
	{0x0F, 0x1F, 0x44, 0x00, 0x00},
	{0x66, 0x0F, 0x1F, 0x44, 0x00, 0x00},
	{0x0F, 0x1F, 0x80, 0x00, 0x00, 0x00, 0x00},
	{0x0F, 0x1F, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
	{0x66, 0x0F, 0x1F, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// EncodeMultiByteNOP returns Intel's recommended single-instruction NOP padding
// sequence for lengths 1-9 (§4.7 "Multi-byte NOP sequences"). Longer padding is the
// caller's responsibility to split into multiple calls.
func EncodeMultiByteNOP(length int) []byte {
	if length < 0 || length >= len(multiByteNOPs) {
		panic("BUG: unsupported NOP padding length")
	}
	out := make([]byte, length)
	copy(out, multiByteNOPs[length])
	return out
}
