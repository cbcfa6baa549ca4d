package objfile

import (
	"bytes"
	"debug/macho"
	"encoding/binary"
)

// MachoArch selects the target architecture for WriteMachO.
type MachoArch int

const (
	MachoAmd64 MachoArch = iota
	MachoArm64
)

// x86_64 and arm64 relocation_info r_type values (debug/macho does not export
// these; darwin's mach-o/x86_64/reloc.h and mach-o/arm64/reloc.h name them).
const (
	x8664RelocBranch   = 2
	arm64RelocBranch26 = 2
)

const (
	nExt  = 0x01
	nSect = 0x0e
)

// WriteMachO serializes o as a relocatable Mach-O object (§4.10), the macOS
// counterpart to WriteELF. Load commands: one LC_SEGMENT_64 ("") holding __TEXT
// and its relocations, one LC_SYMTAB.
func WriteMachO(o *Object, arch MachoArch) ([]byte, error) {
	const textAlign = 16

	offsets, text := o.layout(textAlign)
	syms := o.symbols(offsets)
	symIndex := make(map[string]int, len(syms))
	for i, s := range syms {
		symIndex[s.name] = i
	}

	var relocs bytes.Buffer
	nreloc := 0
	for i, fn := range o.Functions {
		base := offsets[i]
		for _, r := range fn.Relocs {
			idx, ok := symIndex[r.Symbol]
			if !ok {
				continue
			}
			writeMachoReloc(&relocs, arch, uint32(base)+r.Offset, idx)
			nreloc++
		}
	}

	strtab := newStringTable()
	var symtab bytes.Buffer
	for _, s := range syms {
		nameOff := strtab.add(s.name)
		typ := uint8(nSect | nExt)
		sect := uint8(1)
		value := s.value
		if s.external {
			typ = nExt
			sect = 0
			value = 0
		}
		writeMachoNlist64(&symtab, nameOff, typ, sect, value)
	}

	cpu := macho.CpuAmd64
	if arch == MachoArm64 {
		cpu = macho.CpuArm64
	}

	const (
		ehdrSize    = 32 // sizeof mach_header_64
		segCmdSize  = 72 // sizeof segment_command_64
		sectSize    = 80 // sizeof section_64
		symtabCmdSize = 24
		relocEntSize = 8
		nlistSize    = 16
	)

	textOff := uint32(ehdrSize + segCmdSize + sectSize + symtabCmdSize)
	relocOff := textOff + uint32(len(text))
	for relocOff%4 != 0 {
		relocOff++
	}
	symOff := relocOff + uint32(nreloc*relocEntSize)
	strOff := symOff + uint32(len(syms)*nlistSize)

	segLen := uint32(segCmdSize + sectSize)
	sizeofcmds := segLen + uint32(symtabCmdSize)

	var out bytes.Buffer
	writeMachoHeader(&out, cpu, 2, sizeofcmds) // 2 load commands: segment, symtab

	var seg bytes.Buffer
	writeMachoSegment(&seg, "", uint64(textOff), uint64(len(text)), 1)
	writeMachoSection(&seg, "__text", "__TEXT", uint64(textOff), uint64(len(text)),
		textOff, 4, relocOff, uint32(nreloc))
	binary.Write(&out, binary.LittleEndian, uint32(macho.LoadCmdSegment64))
	binary.Write(&out, binary.LittleEndian, segLen)
	out.Write(seg.Bytes())

	binary.Write(&out, binary.LittleEndian, uint32(macho.LoadCmdSymtab))
	binary.Write(&out, binary.LittleEndian, uint32(symtabCmdSize))
	binary.Write(&out, binary.LittleEndian, symOff)
	binary.Write(&out, binary.LittleEndian, uint32(len(syms)))
	binary.Write(&out, binary.LittleEndian, strOff)
	binary.Write(&out, binary.LittleEndian, uint32(strtab.buf.Len()))

	for out.Len() < int(textOff) {
		out.WriteByte(0)
	}
	out.Write(text)
	for out.Len() < int(relocOff) {
		out.WriteByte(0)
	}
	out.Write(relocs.Bytes())
	out.Write(symtab.Bytes())
	out.Write(strtab.buf.Bytes())

	return out.Bytes(), nil
}

func writeMachoHeader(out *bytes.Buffer, cpu macho.Cpu, ncmds, sizeofcmds uint32) {
	binary.Write(out, binary.LittleEndian, macho.Magic64)
	binary.Write(out, binary.LittleEndian, uint32(cpu))
	binary.Write(out, binary.LittleEndian, uint32(0)) // cpusubtype: CPU_SUBTYPE_ALL
	binary.Write(out, binary.LittleEndian, uint32(macho.TypeObj))
	binary.Write(out, binary.LittleEndian, ncmds)
	binary.Write(out, binary.LittleEndian, sizeofcmds)
	binary.Write(out, binary.LittleEndian, uint32(0)) // flags
	binary.Write(out, binary.LittleEndian, uint32(0)) // reserved
}

func writeMachoName16(out *bytes.Buffer, name string) {
	var buf [16]byte
	copy(buf[:], name)
	out.Write(buf[:])
}

func writeMachoSegment(out *bytes.Buffer, name string, fileoff, filesize uint64, nsects uint32) {
	writeMachoName16(out, name)
	binary.Write(out, binary.LittleEndian, uint64(0))  // vmaddr
	binary.Write(out, binary.LittleEndian, filesize)   // vmsize
	binary.Write(out, binary.LittleEndian, fileoff)
	binary.Write(out, binary.LittleEndian, filesize)
	binary.Write(out, binary.LittleEndian, uint32(7)) // maxprot: rwx
	binary.Write(out, binary.LittleEndian, uint32(7)) // initprot
	binary.Write(out, binary.LittleEndian, nsects)
	binary.Write(out, binary.LittleEndian, uint32(0)) // flags
}

func writeMachoSection(out *bytes.Buffer, sectname, segname string, addr, size uint64,
	offset, align, reloff, nreloc uint32) {
	writeMachoName16(out, sectname)
	writeMachoName16(out, segname)
	binary.Write(out, binary.LittleEndian, addr)
	binary.Write(out, binary.LittleEndian, size)
	binary.Write(out, binary.LittleEndian, offset)
	binary.Write(out, binary.LittleEndian, align)
	binary.Write(out, binary.LittleEndian, reloff)
	binary.Write(out, binary.LittleEndian, nreloc)
	binary.Write(out, binary.LittleEndian, uint32(0x80000400)) // S_ATTR_SOME_INSTRUCTIONS|S_ATTR_PURE_INSTRUCTIONS
	binary.Write(out, binary.LittleEndian, uint32(0))          // reserved1
	binary.Write(out, binary.LittleEndian, uint32(0))          // reserved2
	binary.Write(out, binary.LittleEndian, uint32(0))          // reserved3
}

func writeMachoNlist64(out *bytes.Buffer, nameOff uint32, typ, sect uint8, value uint64) {
	binary.Write(out, binary.LittleEndian, nameOff)
	out.WriteByte(typ)
	out.WriteByte(sect)
	binary.Write(out, binary.LittleEndian, uint16(0)) // desc
	binary.Write(out, binary.LittleEndian, value)
}

// writeMachoReloc packs one relocation_info: int32 r_address followed by a
// 32-bit bitfield (r_symbolnum:24, r_pcrel:1, r_length:2, r_extern:1, r_type:4).
func writeMachoReloc(out *bytes.Buffer, arch MachoArch, address uint32, symIndex int) {
	rtype := uint32(x8664RelocBranch)
	if arch == MachoArm64 {
		rtype = arm64RelocBranch26
	}
	bits := uint32(symIndex)&0xffffff | 1<<24 | 2<<25 | 1<<27 | (rtype & 0xf)<<28
	binary.Write(out, binary.LittleEndian, address)
	binary.Write(out, binary.LittleEndian, bits)
}
