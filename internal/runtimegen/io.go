package runtimegen

import "github.com/cot-lang/cotc/internal/clif"

// forwardLibc builds a CLIF function named name that passes all of its arguments
// straight through to the libc symbol libcName and returns whatever it returns
// (§4.8.3: "Forward to libc with straightforward argument pass-through").
func forwardLibc(name, libcName string, numParams, numResults int) *clif.Function {
	return build(name, sig(numParams, numResults), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		params := b.Func().Block(entry).Params()
		ref := libcI64(b, libcName, numParams, numResults)
		if numResults == 1 {
			r, _ := b.Call(ref.ref, ref.sig, params, []clif.Type{clif.TypeI64})
			b.Return([]clif.ValueID{r})
		} else {
			b.Call(ref.ref, ref.sig, params, nil)
			b.Return(nil)
		}
	})
}

// FdWrite builds `fd_write(fd, ptr, len) -> i64`, forwarding to write (§4.8.3).
func FdWrite() *clif.Function { return forwardLibc("fd_write", "write", 3, 1) }

// FdRead builds `fd_read(fd, ptr, len) -> i64`, forwarding to read (§4.8.3).
func FdRead() *clif.Function { return forwardLibc("fd_read", "read", 3, 1) }

// FdClose builds `fd_close(fd) -> i64`, forwarding to close (§4.8.3).
func FdClose() *clif.Function { return forwardLibc("fd_close", "close", 1, 1) }

// FdSeek builds `fd_seek(fd, offset, whence) -> i64`, forwarding to lseek (§4.8.3).
func FdSeek() *clif.Function { return forwardLibc("fd_seek", "lseek", 3, 1) }

// Random builds `random(ptr, len) -> i64`, forwarding to getentropy (§4.8.3).
func Random() *clif.Function { return forwardLibc("random", "getentropy", 2, 1) }

// Exit builds `exit(code) -> void`, forwarding to _exit, which never returns; the
// CLIF still needs a terminator, so a return follows the call as unreachable code
// (§4.8.3).
func Exit() *clif.Function {
	return build("exit", sig(1, 0), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		code := b.Func().Block(entry).Params()[0]
		ref := libcI64(b, "_exit", 1, 0)
		b.Call(ref.ref, ref.sig, []clif.ValueID{code}, nil)
		b.Return(nil)
	})
}

// MemsetZero builds `memset_zero(ptr, size) -> void` as `memset(ptr, 0, size)` (§4.8.3).
func MemsetZero() *clif.Function {
	return build("memset_zero", sig(2, 0), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		params := b.Func().Block(entry).Params()
		ptr, size := params[0], params[1]
		ref := libcI64(b, "memset", 3, 1)
		b.Call(ref.ref, ref.sig, []clif.ValueID{ptr, i64(b, 0), size}, []clif.Type{clif.TypeI64})
		b.Return(nil)
	})
}

// FdOpen builds `fd_open(path_ptr, path_len, flags) -> i64` (§4.8.3): copies the
// path into a 1024-byte stack buffer, null-terminates it, and calls open with mode
// 0666.
func FdOpen() *clif.Function {
	return build("fd_open", sig(3, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)
		params := b.Func().Block(entry).Params()
		pathPtr, pathLen, flags := params[0], params[1], params[2]

		slot := b.DeclareStackSlot(1024, 0)
		bufAddr := b.StackAddr(slot, clif.TypeI64)
		memcpy := libcI64(b, "memcpy", 3, 1)
		b.Call(memcpy.ref, memcpy.sig, []clif.ValueID{bufAddr, pathPtr, pathLen}, []clif.Type{clif.TypeI64})
		nulAddr := b.Iadd(bufAddr, pathLen)
		nul := b.Ireduce(i64(b, 0), clif.TypeI8)
		b.Store(nul, nulAddr, 0, 0)

		const mode0666 = 0666
		open := libcI64(b, "open", 3, 1)
		result, _ := b.Call(open.ref, open.sig, []clif.ValueID{bufAddr, flags, i64(b, mode0666)}, []clif.Type{clif.TypeI64})
		b.Return([]clif.ValueID{result})
	})
}

// Time builds `time() -> i64` (§4.8.3): calls gettimeofday into a 16-byte stack
// buffer and returns tv_sec*1e9 + tv_usec*1000.
func Time() *clif.Function {
	return build("time", sig(0, 1), func(b *clif.Builder) {
		entry := b.CreateEntryBlock()
		b.SetCurrentBlock(entry)

		slot := b.DeclareStackSlot(16, 0)
		tvAddr := b.StackAddr(slot, clif.TypeI64)
		gtod := libcI64(b, "gettimeofday", 2, 1)
		b.Call(gtod.ref, gtod.sig, []clif.ValueID{tvAddr, i64(b, 0)}, []clif.Type{clif.TypeI64})

		sec := b.Load(clif.TypeI64, tvAddr, 0, 0)
		usec := b.Load(clif.TypeI64, tvAddr, 8, 0)
		nanosFromSec := b.Imul(sec, i64(b, 1_000_000_000))
		nanosFromUsec := b.Imul(usec, i64(b, 1_000))
		total := b.Iadd(nanosFromSec, nanosFromUsec)
		b.Return([]clif.ValueID{total})
	})
}
