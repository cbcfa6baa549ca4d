package runtimegen

import (
	"github.com/cot-lang/cotc/internal/clif"
	"github.com/cot-lang/cotc/internal/heap"
)

func i64(b *clif.Builder, v int64) clif.ValueID { return b.Iconst(clif.TypeI64, v) }

// nullGuard appends `if obj == 0, jump to onNull (with no args); otherwise fall
// through into a freshly created block` and returns that fallthrough block. Used by
// every ARC entry point that must no-op on a nil object.
func nullGuard(b *clif.Builder, obj clif.ValueID, onNull clif.BlockID) clif.BlockID {
	notNull := b.CreateBlock()
	isNull := b.Icmp(clif.IntCCEqual, obj, i64(b, 0))
	b.Brif(isNull, onNull, nil, notNull, nil)
	b.SetCurrentBlock(notNull)
	return notNull
}

// Alloc builds `alloc(metadata, size) -> i64` (§4.8.1).
func Alloc() *clif.Function {
	return build("alloc", sig(2, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		params := b.Func().Block(entry).Params()
		metadata, size := params[0], params[1]

		mallocRef := libcI64(b, "malloc", 1, 1)

		headerPlusSize := b.Iadd(size, i64(b, heap.HeaderSize))
		aligned := b.Band(b.Iadd(headerPlusSize, i64(b, 7)), i64(b, ^int64(7)))
		base, _ := b.Call(mallocRef.ref, mallocRef.sig, []clif.ValueID{aligned}, []clif.Type{clif.TypeI64})

		b.Store(aligned, base, heap.OffsetAllocSize, 0)
		b.Store(metadata, base, heap.OffsetMetadata, 0)
		b.Store(i64(b, int64(heap.InitialRefcount)), base, heap.OffsetRefcount, 0)

		user := b.Iadd(base, i64(b, heap.HeaderSize))
		b.Return([]clif.ValueID{user})
	})
}

// Dealloc builds `dealloc(obj) -> void` (§4.8.1).
func Dealloc() *clif.Function {
	return build("dealloc", sig(1, 0), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		obj := b.Func().Block(entry).Params()[0]

		done := b.CreateBlock()
		nullGuard(b, obj, done)

		freeRef := libcI64(b, "free", 1, 0)
		base := b.Isub(obj, i64(b, heap.HeaderSize))
		b.Call(freeRef.ref, freeRef.sig, []clif.ValueID{base}, nil)
		b.Jump(done, nil)

		b.SetCurrentBlock(done)
		b.Return(nil)
	})
}

// headerField loads the 8-byte header field at fieldOffset (one of the Offset*
// constants in package heap) for the object pointed to by obj.
func headerField(b *clif.Builder, obj clif.ValueID, fieldOffset int32) clif.ValueID {
	return b.Load(clif.TypeI64, obj, fieldOffset-heap.HeaderSize, 0)
}

// storeHeaderField stores val into the header field at fieldOffset.
func storeHeaderField(b *clif.Builder, val, obj clif.ValueID, fieldOffset int32) {
	b.Store(val, obj, fieldOffset-heap.HeaderSize, 0)
}

// nullOrImmortalGuard implements the null-guard and immortal-check every ARC entry
// point (besides alloc/dealloc) performs before touching the refcount word (§4.8.1,
// §6.3 "Immortal"). When obj is null or its refcount word is the immortal sentinel,
// control jumps straight to done with earlyArgs. Otherwise it returns the block in
// which the (already-loaded) refcount word is available as the second return value,
// ready for the caller to mutate and store back.
func nullOrImmortalGuard(b *clif.Builder, obj clif.ValueID, done clif.BlockID, earlyArgs []clif.ValueID) (body clif.BlockID, refcount clif.ValueID) {
	notNull := b.CreateBlock()
	isNull := b.Icmp(clif.IntCCEqual, obj, i64(b, 0))
	b.Brif(isNull, done, earlyArgs, notNull, nil)

	b.SetCurrentBlock(notNull)
	word := headerField(b, obj, heap.OffsetRefcount)
	body = b.CreateBlock()
	bodyWord := b.AppendBlockParam(body, clif.TypeI64)
	immortal := heap.Immortal // a variable, so the all-ones sentinel converts to int64 bit for bit
	isImmortal := b.Icmp(clif.IntCCEqual, word, i64(b, int64(immortal)))
	b.Brif(isImmortal, done, earlyArgs, body, []clif.ValueID{word})

	b.SetCurrentBlock(body)
	return body, bodyWord
}

// Retain builds `retain(obj) -> i64` (§4.8.1): null-guard, immortal-check, add
// STRONG_RC_ONE to the refcount word, return obj unchanged.
func Retain() *clif.Function {
	return build("retain", sig(1, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		obj := b.Func().Block(entry).Params()[0]

		done := b.CreateBlock()
		result := b.AppendBlockParam(done, clif.TypeI64)

		_, word := nullOrImmortalGuard(b, obj, done, []clif.ValueID{obj})
		newWord := b.Iadd(word, i64(b, int64(heap.StrongRCOne)))
		storeHeaderField(b, newWord, obj, heap.OffsetRefcount)
		b.Jump(done, []clif.ValueID{obj})

		b.SetCurrentBlock(done)
		b.Return([]clif.ValueID{result})
	})
}

// Release builds `release(obj) -> void` (§4.8.1). When the strong-extra field is
// already zero, this is the last strong reference: the decrement would underflow
// into the deiniting bit, so instead the deiniting flag is set directly, the
// destructor (if any) is invoked, and unowned_release runs to drop the object's own
// backing-store reference.
func Release() *clif.Function {
	return build("release", sig(1, 0), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		obj := b.Func().Block(entry).Params()[0]

		done := b.CreateBlock()
		_, word := nullOrImmortalGuard(b, obj, done, nil)

		strongExtra := b.Band(word, i64(b, int64(heap.StrongExtraMask)))
		isLast := b.Icmp(clif.IntCCEqual, strongExtra, i64(b, 0))

		lastBlk := b.CreateBlock()
		notLastBlk := b.CreateBlock()
		b.Brif(isLast, lastBlk, nil, notLastBlk, nil)

		b.SetCurrentBlock(notLastBlk)
		decremented := b.Isub(word, i64(b, int64(heap.StrongRCOne)))
		storeHeaderField(b, decremented, obj, heap.OffsetRefcount)
		b.Jump(done, nil)

		b.SetCurrentBlock(lastBlk)
		deiniting := b.Bor(word, i64(b, int64(heap.DeinitingMask)))
		storeHeaderField(b, deiniting, obj, heap.OffsetRefcount)

		destructor := headerField(b, obj, heap.OffsetMetadata)
		hasDestructor := b.Icmp(clif.IntCCNotEqual, destructor, i64(b, 0))
		callDtorBlk := b.CreateBlock()
		afterDtorBlk := b.CreateBlock()
		b.Brif(hasDestructor, callDtorBlk, nil, afterDtorBlk, nil)

		b.SetCurrentBlock(callDtorBlk)
		dtorSig := &clif.Signature{CallConv: clif.CallConvSystemV, Params: []clif.ABIParam{{Type: clif.TypeI64}}}
		dtorSigID := b.DeclareSignature(dtorSig)
		b.CallIndirect(destructor, dtorSigID, []clif.ValueID{obj}, nil)
		b.Jump(afterDtorBlk, nil)

		b.SetCurrentBlock(afterDtorBlk)
		unownedRelease := runtimeCall(b, "unowned_release", 1, 0)
		b.Call(unownedRelease.ref, unownedRelease.sig, []clif.ValueID{obj}, nil)
		b.Jump(done, nil)

		b.SetCurrentBlock(done)
		b.Return(nil)
	})
}

// Realloc builds `realloc(obj, new_size) -> i64` (§4.8.1).
func Realloc() *clif.Function {
	return build("realloc", sig(2, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		params := b.Func().Block(entry).Params()
		obj, newSize := params[0], params[1]

		done := b.CreateBlock()
		result := b.AppendBlockParam(done, clif.TypeI64)

		isNull := b.Icmp(clif.IntCCEqual, obj, i64(b, 0))
		nullBlk := b.CreateBlock()
		notNullBlk := b.CreateBlock()
		b.Brif(isNull, nullBlk, nil, notNullBlk, nil)

		b.SetCurrentBlock(nullBlk)
		allocFresh := runtimeCall(b, "alloc", 2, 1)
		freshObj, _ := b.Call(allocFresh.ref, allocFresh.sig, []clif.ValueID{i64(b, 0), newSize}, []clif.Type{clif.TypeI64})
		b.Jump(done, []clif.ValueID{freshObj})

		b.SetCurrentBlock(notNullBlk)
		allocSize := headerField(b, obj, heap.OffsetAllocSize)
		wantTotal := b.Iadd(newSize, i64(b, heap.HeaderSize))
		wantAligned := b.Band(b.Iadd(wantTotal, i64(b, 7)), i64(b, ^int64(7)))
		fits := b.Icmp(clif.IntCCUnsignedLessThanOrEqual, wantAligned, allocSize)
		fitsBlk := b.CreateBlock()
		growBlk := b.CreateBlock()
		b.Brif(fits, fitsBlk, nil, growBlk, nil)

		b.SetCurrentBlock(fitsBlk)
		b.Jump(done, []clif.ValueID{obj})

		b.SetCurrentBlock(growBlk)
		metadata := headerField(b, obj, heap.OffsetMetadata)
		allocGrown := runtimeCall(b, "alloc", 2, 1)
		grownObj, _ := b.Call(allocGrown.ref, allocGrown.sig, []clif.ValueID{metadata, newSize}, []clif.Type{clif.TypeI64})
		oldPayload := b.Isub(allocSize, i64(b, heap.HeaderSize))
		oldSmaller := b.Icmp(clif.IntCCUnsignedLessThan, oldPayload, newSize)
		copyLen := b.Select(oldSmaller, oldPayload, newSize)
		memcpy := libcI64(b, "memcpy", 3, 1)
		b.Call(memcpy.ref, memcpy.sig, []clif.ValueID{grownObj, obj, copyLen}, []clif.Type{clif.TypeI64})
		deallocOld := runtimeCall(b, "dealloc", 1, 0)
		b.Call(deallocOld.ref, deallocOld.sig, []clif.ValueID{obj}, nil)
		b.Jump(done, []clif.ValueID{grownObj})

		b.SetCurrentBlock(done)
		b.Return([]clif.ValueID{result})
	})
}

// StringConcat builds `string_concat(p1, l1, p2, l2) -> i64` (§4.8.1).
func StringConcat() *clif.Function {
	return build("string_concat", sig(4, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		params := b.Func().Block(entry).Params()
		p1, l1, p2, l2 := params[0], params[1], params[2], params[3]

		done := b.CreateBlock()
		result := b.AppendBlockParam(done, clif.TypeI64)

		newLen := b.Iadd(l1, l2)
		isZero := b.Icmp(clif.IntCCEqual, newLen, i64(b, 0))
		zeroBlk := b.CreateBlock()
		nonzeroBlk := b.CreateBlock()
		b.Brif(isZero, zeroBlk, nil, nonzeroBlk, nil)

		b.SetCurrentBlock(zeroBlk)
		b.Jump(done, []clif.ValueID{i64(b, 0)})

		b.SetCurrentBlock(nonzeroBlk)
		allocRef := runtimeCall(b, "alloc", 2, 1)
		obj, _ := b.Call(allocRef.ref, allocRef.sig, []clif.ValueID{i64(b, 0), newLen}, []clif.Type{clif.TypeI64})
		memcpy := libcI64(b, "memcpy", 3, 1)
		b.Call(memcpy.ref, memcpy.sig, []clif.ValueID{obj, p1, l1}, []clif.Type{clif.TypeI64})
		tail := b.Iadd(obj, l1)
		b.Call(memcpy.ref, memcpy.sig, []clif.ValueID{tail, p2, l2}, []clif.Type{clif.TypeI64})
		b.Jump(done, []clif.ValueID{obj})

		b.SetCurrentBlock(done)
		b.Return([]clif.ValueID{result})
	})
}

// StringEq builds `string_eq(p1, l1, p2, l2) -> i64` (§4.8.1): lengths differ -> 0;
// pointer-equal -> 1; else memcmp -> 1 if the result is 0, else 0.
func StringEq() *clif.Function {
	return build("string_eq", sig(4, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		params := b.Func().Block(entry).Params()
		p1, l1, p2, l2 := params[0], params[1], params[2], params[3]

		done := b.CreateBlock()
		result := b.AppendBlockParam(done, clif.TypeI64)

		lenDiffers := b.Icmp(clif.IntCCNotEqual, l1, l2)
		diffBlk := b.CreateBlock()
		sameLenBlk := b.CreateBlock()
		b.Brif(lenDiffers, diffBlk, nil, sameLenBlk, nil)

		b.SetCurrentBlock(diffBlk)
		b.Jump(done, []clif.ValueID{i64(b, 0)})

		b.SetCurrentBlock(sameLenBlk)
		ptrEq := b.Icmp(clif.IntCCEqual, p1, p2)
		ptrEqBlk := b.CreateBlock()
		memcmpBlk := b.CreateBlock()
		b.Brif(ptrEq, ptrEqBlk, nil, memcmpBlk, nil)

		b.SetCurrentBlock(ptrEqBlk)
		b.Jump(done, []clif.ValueID{i64(b, 1)})

		b.SetCurrentBlock(memcmpBlk)
		memcmp := libcI64(b, "memcmp", 3, 1)
		cmp, _ := b.Call(memcmp.ref, memcmp.sig, []clif.ValueID{p1, p2, l1}, []clif.Type{clif.TypeI64})
		isEq := b.Icmp(clif.IntCCEqual, cmp, i64(b, 0))
		eqBlk := b.CreateBlock()
		neBlk := b.CreateBlock()
		b.Brif(isEq, eqBlk, nil, neBlk, nil)

		b.SetCurrentBlock(eqBlk)
		b.Jump(done, []clif.ValueID{i64(b, 1)})

		b.SetCurrentBlock(neBlk)
		b.Jump(done, []clif.ValueID{i64(b, 0)})

		b.SetCurrentBlock(done)
		b.Return([]clif.ValueID{result})
	})
}

// UnownedRetain builds `unowned_retain(obj) -> void` (§4.8.1).
func UnownedRetain() *clif.Function {
	return build("unowned_retain", sig(1, 0), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		obj := b.Func().Block(entry).Params()[0]

		done := b.CreateBlock()
		_, word := nullOrImmortalGuard(b, obj, done, nil)
		newWord := b.Iadd(word, i64(b, int64(heap.UnownedRCOne)))
		storeHeaderField(b, newWord, obj, heap.OffsetRefcount)
		b.Jump(done, nil)

		b.SetCurrentBlock(done)
		b.Return(nil)
	})
}

// UnownedRelease builds `unowned_release(obj) -> void` (§4.8.1): subtract
// UNOWNED_RC_ONE; if the new unowned count is zero, call dealloc.
func UnownedRelease() *clif.Function {
	return build("unowned_release", sig(1, 0), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		obj := b.Func().Block(entry).Params()[0]

		done := b.CreateBlock()
		_, word := nullOrImmortalGuard(b, obj, done, nil)
		newWord := b.Isub(word, i64(b, int64(heap.UnownedRCOne)))
		storeHeaderField(b, newWord, obj, heap.OffsetRefcount)

		unownedCount := b.Ushr(b.Band(newWord, i64(b, int64(heap.UnownedMask))), i64(b, heap.UnownedShift))
		isZero := b.Icmp(clif.IntCCEqual, unownedCount, i64(b, 0))
		deallocBlk := b.CreateBlock()
		skipBlk := b.CreateBlock()
		b.Brif(isZero, deallocBlk, nil, skipBlk, nil)

		b.SetCurrentBlock(deallocBlk)
		deallocRef := runtimeCall(b, "dealloc", 1, 0)
		b.Call(deallocRef.ref, deallocRef.sig, []clif.ValueID{obj}, nil)
		b.Jump(skipBlk, nil)

		b.SetCurrentBlock(skipBlk)
		b.Jump(done, nil)

		b.SetCurrentBlock(done)
		b.Return(nil)
	})
}

// UnownedLoadStrong builds `unowned_load_strong(obj) -> i64` (§4.8.1): null -> 0;
// immortal -> obj unchanged; if deiniting, trap; else retain and return.
func UnownedLoadStrong() *clif.Function {
	return build("unowned_load_strong", sig(1, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		obj := b.Func().Block(entry).Params()[0]

		done := b.CreateBlock()
		result := b.AppendBlockParam(done, clif.TypeI64)

		_, word := nullOrImmortalGuard(b, obj, done, []clif.ValueID{obj})

		deiniting := b.Band(word, i64(b, int64(heap.DeinitingMask)))
		isDeiniting := b.Icmp(clif.IntCCNotEqual, deiniting, i64(b, 0))
		trapBlk := b.CreateBlock()
		okBlk := b.CreateBlock()
		b.Brif(isDeiniting, trapBlk, nil, okBlk, nil)

		b.SetCurrentBlock(trapBlk)
		b.Trap()

		b.SetCurrentBlock(okBlk)
		retainRef := runtimeCall(b, "retain", 1, 1)
		retained, _ := b.Call(retainRef.ref, retainRef.sig, []clif.ValueID{obj}, []clif.Type{clif.TypeI64})
		b.Jump(done, []clif.ValueID{retained})

		b.SetCurrentBlock(done)
		b.Return([]clif.ValueID{result})
	})
}
