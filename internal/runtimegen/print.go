package runtimegen

import "github.com/cot-lang/cotc/internal/clif"

// writeByte writes a single literal byte to fd via a one-byte stack buffer.
func writeByte(b *clif.Builder, fd int64, ch byte) {
	slot := b.DeclareStackSlot(1, 0)
	c := b.Ireduce(i64(b, int64(ch)), clif.TypeI8)
	b.StackStore(c, slot, 0)
	addr := b.StackAddr(slot, clif.TypeI64)
	write := libcI64(b, "write", 3, 1)
	b.Call(write.ref, write.sig, []clif.ValueID{i64(b, fd), addr, i64(b, 1)}, []clif.Type{clif.TypeI64})
}

// digitLoop formats the non-negative value val as decimal digits into the buffer at
// bufAddr, writing right-to-left starting at byte offset lastOffset (§4.8.2: "writing
// digits right-to-left... starting at offset 22" for the 24-byte print buffers, or
// offset 20 for int_to_string's 21-byte buffer). It returns the offset of the first
// (most-significant) digit written. A value of zero writes a single '0'.
func digitLoop(b *clif.Builder, val, bufAddr clif.ValueID, lastOffset int64) clif.ValueID {
	zeroBlk := b.CreateBlock()
	loopHeader := b.CreateBlock()
	valParam := b.AppendBlockParam(loopHeader, clif.TypeI64)
	posParam := b.AppendBlockParam(loopHeader, clif.TypeI64)
	done := b.CreateBlock()
	doneStart := b.AppendBlockParam(done, clif.TypeI64)

	isZero := b.Icmp(clif.IntCCEqual, val, i64(b, 0))
	b.Brif(isZero, zeroBlk, nil, loopHeader, []clif.ValueID{val, i64(b, lastOffset)})

	b.SetCurrentBlock(zeroBlk)
	zeroAddr := b.Iadd(bufAddr, i64(b, lastOffset))
	zeroChar := b.Ireduce(i64(b, int64('0')), clif.TypeI8)
	b.Store(zeroChar, zeroAddr, 0, 0)
	b.Jump(done, []clif.ValueID{i64(b, lastOffset)})

	b.SetCurrentBlock(loopHeader)
	digit := b.Urem(valParam, i64(b, 10))
	rest := b.Udiv(valParam, i64(b, 10))
	digitChar := b.Ireduce(b.Iadd(digit, i64(b, int64('0'))), clif.TypeI8)
	addr := b.Iadd(bufAddr, posParam)
	b.Store(digitChar, addr, 0, 0)
	nextPos := b.Isub(posParam, i64(b, 1))

	continueBlk := b.CreateBlock()
	restZero := b.Icmp(clif.IntCCEqual, rest, i64(b, 0))
	b.Brif(restZero, done, []clif.ValueID{posParam}, continueBlk, nil)

	b.SetCurrentBlock(continueBlk)
	b.Jump(loopHeader, []clif.ValueID{rest, nextPos})

	b.SetCurrentBlock(done)
	return doneStart
}

// printIntTo builds the body shared by print_int and eprint_int (§4.8.2): if
// negative, write '-' then negate; format the magnitude into a 24-byte stack buffer;
// write the resulting slice to fd. No trailing newline is emitted.
func printIntTo(b *clif.Builder, fd int64) {
	entry := b.CreateEntryBlock()
	b.SetCurrentBlock(entry)
	val := b.Func().Block(entry).Params()[0]

	isNeg := b.Icmp(clif.IntCCSignedLessThan, val, i64(b, 0))
	negBlk := b.CreateBlock()
	posBlk := b.CreateBlock()
	merge := b.CreateBlock()
	mergedVal := b.AppendBlockParam(merge, clif.TypeI64)
	b.Brif(isNeg, negBlk, nil, posBlk, nil)

	b.SetCurrentBlock(negBlk)
	writeByte(b, fd, '-')
	negated := b.Isub(i64(b, 0), val)
	b.Jump(merge, []clif.ValueID{negated})

	b.SetCurrentBlock(posBlk)
	b.Jump(merge, []clif.ValueID{val})

	b.SetCurrentBlock(merge)
	const lastOffset = 22
	slot := b.DeclareStackSlot(24, 0)
	bufAddr := b.StackAddr(slot, clif.TypeI64)
	startOff := digitLoop(b, mergedVal, bufAddr, lastOffset)
	length := b.Iadd(b.Isub(i64(b, lastOffset), startOff), i64(b, 1))
	sliceAddr := b.Iadd(bufAddr, startOff)
	write := libcI64(b, "write", 3, 1)
	b.Call(write.ref, write.sig, []clif.ValueID{i64(b, fd), sliceAddr, length}, []clif.Type{clif.TypeI64})
	b.Return(nil)
}

// PrintInt builds `print_int(val) -> void` writing decimal digits to fd 1 (§4.8.2).
func PrintInt() *clif.Function {
	return build("print_int", sig(1, 0), func(b *clif.Builder) { printIntTo(b, 1) })
}

// EprintInt builds `eprint_int(val) -> void` writing decimal digits to fd 2 (§4.8.2).
func EprintInt() *clif.Function {
	return build("eprint_int", sig(1, 0), func(b *clif.Builder) { printIntTo(b, 2) })
}

// IntToString builds `int_to_string(val, buf) -> i64` (§4.8.2): formats into a
// caller-supplied 21-byte buffer and returns the length; the first character lands
// at buf + 21 - length.
func IntToString() *clif.Function {
	return build("int_to_string", sig(2, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		params := b.Func().Block(entry).Params()
		val, buf := params[0], params[1]

		const lastOffset = 20
		startOff := digitLoop(b, val, buf, lastOffset)
		length := b.Iadd(b.Isub(i64(b, lastOffset), startOff), i64(b, 1))
		b.Return([]clif.ValueID{length})
	})
}
