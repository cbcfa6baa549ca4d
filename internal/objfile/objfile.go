// Package objfile assembles compiled machine code into a relocatable object file
// (§4.10): a .text section of concatenated function bodies, a symbol table, and a
// relocation table for call sites that target externs or other functions in the
// object. No third-party object-file-writing library exists anywhere in this
// repository's retrieval pack (debug/elf and debug/macho are read-only parsers, not
// writers), so this package is hand-rolled on encoding/binary and bytes.Buffer,
// following the field layouts debug/elf and debug/macho document.
package objfile

import "sort"

// RelocKind distinguishes the two relocation shapes §4.10 calls for.
type RelocKind int

const (
	// RelocPCRel32 is a PC-relative call-site relocation, used for calls to
	// external symbols and for RIP-relative data loads. The writers emit it as
	// a 32-bit PC-relative entry for AMD64 and as the 26-bit branch relocation
	// for ARM64.
	RelocPCRel32 RelocKind = iota
	// RelocPCRel32Colocated is the same shape, but targets a symbol defined in
	// this same object ("Calls to colocated functions may use a shorter
	// relocation", §4.10); the writers emit the same relocation type for it as
	// for RelocPCRel32, but the distinction is kept for tooling that wants to
	// tell them apart (e.g. the perfmap/disassembly sidecar).
	RelocPCRel32Colocated
)

// Relocation records one call site or RIP-relative load within a Function's code
// that the linker must patch once the referenced symbol's final address is known.
type Relocation struct {
	// Offset is the byte offset within the Function's Code where the 4-byte
	// relocated field begins.
	Offset uint32
	// Symbol is the name of the referenced symbol (an extern or another
	// Function in this object).
	Symbol string
	Kind   RelocKind
	// Addend is the constant added to the symbol's address before computing the
	// PC-relative displacement (0 for a plain call; -4 is typical for some
	// instruction encodings where the displacement is measured from the start
	// of the relocated field rather than the end of the instruction).
	Addend int64
}

// Function is one compiled function's machine code plus the relocations its call
// sites and data references need.
type Function struct {
	Name   string
	Code   []byte
	Relocs []Relocation
}

// Object accumulates compiled functions and the set of external symbols (libc
// calls) they reference, ready to be serialized by WriteELF or WriteMachO.
type Object struct {
	Functions []Function
	// Externs lists every extern symbol name referenced by any Function's
	// Relocs but not itself defined as a Function in this object (§4.10: "one
	// symbol per compiled function, plus externs for every unresolved libc
	// call").
	Externs []string
}

// AddFunction appends a compiled function to the object.
func (o *Object) AddFunction(fn Function) {
	o.Functions = append(o.Functions, fn)
}

// AddExtern registers an external symbol name if not already present.
func (o *Object) AddExtern(name string) {
	for _, e := range o.Externs {
		if e == name {
			return
		}
	}
	o.Externs = append(o.Externs, name)
}

// definedFunctionNames returns the set of names this object itself defines,
// distinguishing a colocated call target from a true extern.
func (o *Object) definedFunctionNames() map[string]bool {
	defined := make(map[string]bool, len(o.Functions))
	for _, fn := range o.Functions {
		defined[fn.Name] = true
	}
	return defined
}

// layout computes the deterministic .text offset of every function (§4.10 "The
// writer is deterministic (no timestamps, sorted symbol order)") and the
// alignment padding between them. Functions are laid out in Object.Functions
// order (the front end's function-table order, per §5's inter-function ordering
// guarantee), not sorted — only the symbol table is sorted.
func (o *Object) layout(textAlign uint64) (offsets []uint64, text []byte) {
	offsets = make([]uint64, len(o.Functions))
	var buf []byte
	for i, fn := range o.Functions {
		for uint64(len(buf))%textAlign != 0 {
			buf = append(buf, 0)
		}
		offsets[i] = uint64(len(buf))
		buf = append(buf, fn.Code...)
	}
	return offsets, buf
}

// objSymbol is a resolved, object-relative symbol ready for either backend's
// symbol-table encoding.
type objSymbol struct {
	name     string
	value    uint64
	size     uint64
	external bool
}

// symbols returns every function symbol plus every extern symbol, sorted by name
// for determinism.
func (o *Object) symbols(offsets []uint64) []objSymbol {
	syms := make([]objSymbol, 0, len(o.Functions)+len(o.Externs))
	for i, fn := range o.Functions {
		syms = append(syms, objSymbol{name: fn.Name, value: offsets[i], size: uint64(len(fn.Code))})
	}
	for _, e := range o.Externs {
		syms = append(syms, objSymbol{name: e, external: true})
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].name < syms[j].name })
	return syms
}
