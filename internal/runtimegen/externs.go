// Package runtimegen builds the ARC, print, and I/O runtime support functions
// directly as CLIF (§4.8), so they pass through the same lowering pipeline as
// user code instead of being hand-assembled or linked from a prebuilt blob.
package runtimegen

import "github.com/cot-lang/cotc/internal/clif"

// externRef is a declared reference to a function outside the one currently being
// built: either a genuinely external libc symbol or another colocated runtime
// function generated by this package.
type externRef struct {
	ref clif.FuncRefID
	sig clif.SignatureID
}

// libcI64 declares an extern whose every parameter and result is a pointer-sized
// integer, which covers every libc call this package makes (malloc, free, memcpy,
// memcmp, memset, write, read, open, close, lseek, getentropy, _exit,
// gettimeofday). The calling convention tag is a placeholder: lowering assigns the
// real platform ABI once the target architecture is known (§4.9).
func libcI64(b *clif.Builder, name string, numParams, numResults int) externRef {
	params := make([]clif.ABIParam, numParams)
	for i := range params {
		params[i] = clif.ABIParam{Type: clif.TypeI64}
	}
	results := make([]clif.ABIParam, numResults)
	for i := range results {
		results[i] = clif.ABIParam{Type: clif.TypeI64}
	}
	sig := &clif.Signature{CallConv: clif.CallConvSystemV, Params: params, Results: results, Name: name, External: true}
	sigID := b.DeclareSignature(sig)
	return externRef{ref: b.DeclareFuncRef(name, sigID, false), sig: sigID}
}

// runtimeCall declares a reference to another function generated by this same
// package (realloc calling alloc and dealloc, release calling unowned_release, and
// so on).
// Colocated per §4.10 since both land in the same object.
func runtimeCall(b *clif.Builder, name string, numParams, numResults int) externRef {
	params := make([]clif.ABIParam, numParams)
	for i := range params {
		params[i] = clif.ABIParam{Type: clif.TypeI64}
	}
	results := make([]clif.ABIParam, numResults)
	for i := range results {
		results[i] = clif.ABIParam{Type: clif.TypeI64}
	}
	sig := &clif.Signature{CallConv: clif.CallConvSystemV, Params: params, Results: results, Name: name}
	sigID := b.DeclareSignature(sig)
	return externRef{ref: b.DeclareFuncRef(name, sigID, true), sig: sigID}
}

// build wraps the common boilerplate of starting a fresh function, invoking body
// to construct its blocks, and finalizing it.
func build(name string, sig *clif.Signature, body func(b *clif.Builder)) *clif.Function {
	b := clif.NewBuilder()
	b.Init(name, sig)
	body(b)
	if err := b.Finalize(); err != nil {
		panic("BUG: runtimegen produced an invalid function " + name + ": " + err.Error())
	}
	return b.Func()
}

func sig(params, results int) *clif.Signature {
	ps := make([]clif.ABIParam, params)
	for i := range ps {
		ps[i] = clif.ABIParam{Type: clif.TypeI64}
	}
	rs := make([]clif.ABIParam, results)
	for i := range rs {
		rs[i] = clif.ABIParam{Type: clif.TypeI64}
	}
	return &clif.Signature{CallConv: clif.CallConvSystemV, Params: ps, Results: rs}
}
