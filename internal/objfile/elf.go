package objfile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// WriteELF serializes o as a relocatable ELF64 object (§4.10) for the given
// machine (elf.EM_X86_64 or elf.EM_AARCH64). Section layout: null, .text,
// .rela.text, .symtab, .strtab, .shstrtab.
func WriteELF(o *Object, machine elf.Machine) ([]byte, error) {
	const textAlign = 16

	offsets, text := o.layout(textAlign)

	syms := o.symbols(offsets)
	symIndex := make(map[string]int, len(syms))
	for i, s := range syms {
		symIndex[s.name] = i + 1 // symbol 0 is the reserved null entry
	}

	strtab := newStringTable()
	symtab := new(bytes.Buffer)
	// The null symbol, index 0, per the ELF symbol-table convention.
	writeElf64Sym(symtab, 0, 0, 0, 0, 0)
	for _, s := range syms {
		nameOff := strtab.add(s.name)
		bind := elf.STB_GLOBAL
		typ := elf.STT_FUNC
		shndx := uint16(1) // .text
		if s.external {
			typ = elf.STT_NOTYPE
			shndx = 0 // SHN_UNDEF
		}
		info := byte(bind)<<4 | byte(typ)
		writeElf64Sym(symtab, nameOff, info, shndx, s.value, s.size)
	}

	relaText := new(bytes.Buffer)
	for i, fn := range o.Functions {
		base := offsets[i]
		for _, r := range fn.Relocs {
			idx, ok := symIndex[r.Symbol]
			if !ok {
				continue
			}
			info := uint64(idx)<<32 | uint64(relocType(machine))
			writeElf64Rela(relaText, base+uint64(r.Offset), info, r.Addend)
		}
	}

	shstrtab := newStringTable()
	textNameOff := shstrtab.add(".text")
	relaNameOff := shstrtab.add(".rela.text")
	symtabNameOff := shstrtab.add(".symtab")
	strtabNameOff := shstrtab.add(".strtab")
	shstrtabNameOff := shstrtab.add(".shstrtab")

	sections := []elf64Shdr{
		{}, // SHT_NULL
		{Name: textNameOff, Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Addralign: textAlign, Size: uint64(len(text))},
		{Name: relaNameOff, Type: uint32(elf.SHT_RELA), Link: 3, Info: 1, Entsize: 24, Addralign: 8,
			Size: uint64(relaText.Len())},
		{Name: symtabNameOff, Type: uint32(elf.SHT_SYMTAB), Link: 4, Info: uint32(len(syms) + 1), Entsize: 24,
			Addralign: 8, Size: uint64(symtab.Len())},
		{Name: strtabNameOff, Type: uint32(elf.SHT_STRTAB), Addralign: 1, Size: uint64(strtab.buf.Len())},
		{Name: shstrtabNameOff, Type: uint32(elf.SHT_STRTAB), Addralign: 1, Size: uint64(shstrtab.buf.Len())},
	}

	var out bytes.Buffer
	const ehdrSize = 64
	bodies := [][]byte{text, relaText.Bytes(), symtab.Bytes(), strtab.buf.Bytes(), shstrtab.buf.Bytes()}

	off := uint64(ehdrSize)
	for i := 1; i < len(sections); i++ {
		for off%uint64(max64(sections[i].Addralign, 1)) != 0 {
			off++
		}
		sections[i].Off = off
		off += sections[i].Size
	}
	shoff := off

	writeElf64Ehdr(&out, machine, shoff, uint16(len(sections)), 5)
	for i, body := range bodies {
		want := int(sections[i+1].Off)
		for out.Len() < want {
			out.WriteByte(0)
		}
		out.Write(body)
	}
	for out.Len() < int(shoff) {
		out.WriteByte(0)
	}
	for _, s := range sections {
		writeElf64Shdr(&out, s)
	}
	return out.Bytes(), nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// relocType returns the target machine's standard call-site relocation type:
// R_X86_64_PLT32 (PC-relative 32-bit) for AMD64, R_AARCH64_CALL26 for ARM64. Both
// RelocKind values share it here since this writer does not special-case the
// colocated case's encoding.
func relocType(machine elf.Machine) uint32 {
	if machine == elf.EM_AARCH64 {
		return uint32(elf.R_AARCH64_CALL26)
	}
	return uint32(elf.R_X86_64_PLT32)
}

// elf64Shdr mirrors Elf64_Shdr (debug/elf documents the field layout; this
// package only needs to write it, which debug/elf's own types do not support).
type elf64Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Off       uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

func writeElf64Shdr(out *bytes.Buffer, s elf64Shdr) {
	binary.Write(out, binary.LittleEndian, s.Name)
	binary.Write(out, binary.LittleEndian, s.Type)
	binary.Write(out, binary.LittleEndian, s.Flags)
	binary.Write(out, binary.LittleEndian, s.Addr)
	binary.Write(out, binary.LittleEndian, s.Off)
	binary.Write(out, binary.LittleEndian, s.Size)
	binary.Write(out, binary.LittleEndian, s.Link)
	binary.Write(out, binary.LittleEndian, s.Info)
	binary.Write(out, binary.LittleEndian, s.Addralign)
	binary.Write(out, binary.LittleEndian, s.Entsize)
}

func writeElf64Ehdr(out *bytes.Buffer, machine elf.Machine, shoff uint64, shnum, shstrndx uint16) {
	var ident [16]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	out.Write(ident[:])
	binary.Write(out, binary.LittleEndian, uint16(elf.ET_REL))
	binary.Write(out, binary.LittleEndian, uint16(machine))
	binary.Write(out, binary.LittleEndian, uint32(elf.EV_CURRENT))
	binary.Write(out, binary.LittleEndian, uint64(0)) // e_entry: none for ET_REL
	binary.Write(out, binary.LittleEndian, uint64(0)) // e_phoff: no program headers
	binary.Write(out, binary.LittleEndian, shoff)
	binary.Write(out, binary.LittleEndian, uint32(0)) // e_flags
	binary.Write(out, binary.LittleEndian, uint16(64)) // e_ehsize
	binary.Write(out, binary.LittleEndian, uint16(0))  // e_phentsize
	binary.Write(out, binary.LittleEndian, uint16(0))  // e_phnum
	binary.Write(out, binary.LittleEndian, uint16(64)) // e_shentsize
	binary.Write(out, binary.LittleEndian, shnum)
	binary.Write(out, binary.LittleEndian, shstrndx)
}

func writeElf64Sym(out *bytes.Buffer, nameOff uint32, info byte, shndx uint16, value, size uint64) {
	binary.Write(out, binary.LittleEndian, nameOff)
	out.WriteByte(info)
	out.WriteByte(0) // st_other
	binary.Write(out, binary.LittleEndian, shndx)
	binary.Write(out, binary.LittleEndian, value)
	binary.Write(out, binary.LittleEndian, size)
}

func writeElf64Rela(out *bytes.Buffer, offset, info uint64, addend int64) {
	binary.Write(out, binary.LittleEndian, offset)
	binary.Write(out, binary.LittleEndian, info)
	binary.Write(out, binary.LittleEndian, addend)
}

// stringTable accumulates a NUL-separated string table, returning each string's
// byte offset the way ELF/Mach-O name tables require.
type stringTable struct {
	buf bytes.Buffer
}

func newStringTable() *stringTable {
	t := &stringTable{}
	t.buf.WriteByte(0) // offset 0 is always the empty string
	return t
}

func (t *stringTable) add(s string) uint32 {
	off := uint32(t.buf.Len())
	t.buf.WriteString(s)
	t.buf.WriteByte(0)
	return off
}
