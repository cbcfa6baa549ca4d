package objfile

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/asmfmt"
)

// Perfmap accumulates addr/size/name entries for Linux's perf(1) "perf map"
// format, mirroring the wazevo JIT's own perfmap bookkeeping (AddEntry/Clear/
// Flush), adapted here for an ahead-of-time object: entries are keyed off
// .text-relative offsets rather than a live JIT's absolute addresses, and
// Flush takes the final load address as its offset instead of reading one
// from a running process.
type Perfmap struct {
	entries []perfmapEntry
}

type perfmapEntry struct {
	offset uint64
	size   uint64
	name   string
}

// AddEntry records one function's .text-relative offset and size.
func (p *Perfmap) AddEntry(offset, size uint64, name string) {
	p.entries = append(p.entries, perfmapEntry{offset, size, name})
}

// Clear discards every recorded entry.
func (p *Perfmap) Clear() { p.entries = p.entries[:0] }

// Flush writes one "addr size name" line per entry, each address shifted by
// base (the .text section's final load address).
func (p *Perfmap) Flush(w io.Writer, base uint64) error {
	for _, e := range p.entries {
		if _, err := fmt.Fprintf(w, "%x %s %s\n", base+e.offset, strconv.FormatUint(e.size, 16), e.name); err != nil {
			return err
		}
	}
	return nil
}

// PerfmapFor builds a Perfmap directly from an Object's layout, so callers
// that already have a compiled Object don't need to track offsets themselves.
func PerfmapFor(o *Object) *Perfmap {
	offsets, _ := o.layout(16)
	p := &Perfmap{}
	for i, fn := range o.Functions {
		p.AddEntry(offsets[i], uint64(len(fn.Code)), fn.Name)
	}
	return p
}

// Disassemble renders a best-effort textual listing of o's compiled functions
// as Go-asm-style BYTE directives annotated with symbol and relocation
// comments, then runs it through asmfmt the way a generated Go assembly stub
// would be formatted (§4.10's disassembly sidecar; ajroetker-goat's
// generateGoAssembly takes the same raw-bytes-to-Go-asm-text-then-asmfmt
// approach for its own generated stubs).
func Disassemble(o *Object) ([]byte, error) {
	var b strings.Builder
	b.WriteString("//go:build ignore\n\n")
	b.WriteString("// This file is a disassembly sidecar, not a buildable stub.\n")
	for _, fn := range o.Functions {
		relocAt := make(map[uint32]Relocation, len(fn.Relocs))
		for _, r := range fn.Relocs {
			relocAt[r.Offset] = r
		}
		fmt.Fprintf(&b, "\nTEXT ·%s(SB), $0-0\n", fn.Name)
		for off := 0; off < len(fn.Code); off += 8 {
			end := off + 8
			if end > len(fn.Code) {
				end = len(fn.Code)
			}
			chunk := fn.Code[off:end]
			hex := make([]string, len(chunk))
			for i, by := range chunk {
				hex[i] = fmt.Sprintf("%02x", by)
			}
			line := fmt.Sprintf("\tBYTE $0x%s\n", strings.Join(hex, ""))
			if r, ok := relocAt[uint32(off)]; ok {
				line = fmt.Sprintf("\tBYTE $0x%s // reloc -> %s\n", strings.Join(hex, ""), r.Symbol)
			}
			b.WriteString(line)
		}
		b.WriteString("\tRET\n")
	}

	out, err := asmfmt.Format(strings.NewReader(b.String()))
	if err != nil {
		return []byte(b.String()), err
	}
	return out, nil
}
