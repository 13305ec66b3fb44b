package dwarfinc

import (
	"github.com/xyproto/dwarfinc/internal/engine"
)

// headerRegions describes the preallocated, fixed-size byte ranges the
// Header Writers own within each section, per spec.md §4.5. Every region
// is written exactly once per compile (CU header may be rewritten when
// low_pc/high_pc become final) and padded to its reserved size with pad1 /
// negate_stmt so a consumer that walks past the advertised content still
// sees valid instructions.
type headerRegions struct {
	// CUHeaderMax is the largest a compile-unit header is allowed to be
	// before HeaderOverflow fires (spec.md §4.5 "<=120 bytes").
	CUHeaderMax uint32
}

var defaultHeaderRegions = headerRegions{CUHeaderMax: 120}

// WriteAbbrevTable serializes the fixed 12-entry abbreviation table into
// .debug_abbrev at offset 0 (spec.md §4.5 "Offset abbrev_table_offset is
// 0"). The table never changes shape across a compile, so this is written
// once at emitter construction and never touched again.
func WriteAbbrevTable(of ObjectFile) error {
	sectionOff, _, err := of.SectionOffset(".debug_abbrev")
	if err != nil {
		return ioError(".debug_abbrev", err.Error())
	}
	buf := abbrevTableBytes()
	if err := of.PwriteAll(buf, sectionOff); err != nil {
		return err
	}
	return of.GrowSection(".debug_abbrev", sectionOff, uint64(len(buf)))
}

// CUHeader carries the fields spec.md §4.5 requires in the compile-unit
// header, filled in as they become known. NameOff/CompDirOff/ProducerOff
// are string-table offsets (DW_FORM_strp); LowPC/HighPC describe the
// single text range this emitter's one CU covers (spec.md Non-goals:
// multi-CU DWARF is out of scope, so there is exactly one).
type CUHeader struct {
	StmtListOffset uint32 // offset of the .debug_line program within its section
	LowPC          uint64
	HighPC         uint64
	NameOff        uint32
	CompDirOff     uint32
	ProducerOff    uint32
}

// WriteCUHeader builds and writes the compile-unit header into the
// preallocated region at the start of .debug_info, immediately followed by
// the first atom at padToIdeal(headerBytes) (allocator.go's empty-list
// placement, spec.md §4.1 step 2). The header is padded to regions.CUHeaderMax
// with pad1 bytes; a header that doesn't fit is a fatal HeaderOverflow —
// the emitter does not attempt to repack (spec.md §4.5).
func WriteCUHeader(of ObjectFile, target engine.Target, h CUHeader, regions headerRegions) error {
	buf := buildCUHeaderBytes(target, h)
	if uint32(len(buf)) > regions.CUHeaderMax {
		return headerOverflowError(".debug_info", "compile-unit header exceeds preallocated region")
	}
	buf = append(buf, infoPadding(regions.CUHeaderMax-uint32(len(buf)))...)

	sectionOff, size, err := of.SectionOffset(".debug_info")
	if err != nil {
		return ioError(".debug_info", err.Error())
	}
	// Once atoms have been placed, the unit length covers the whole section
	// (header region, every atom and the closing zero byte).
	if size > uint64(len(buf)) {
		if target.IsELF() && target.Is64Bit() {
			putLength8(buf[4:12], size-12)
		} else {
			putRef4(buf[0:4], uint32(size-4))
		}
	}
	return of.PwriteAll(buf, sectionOff)
}

func buildCUHeaderBytes(target engine.Target, h CUHeader) []byte {
	var buf []byte

	// Initial length: 32-bit for ELF-32 and Mach-O, 64-bit (with 0xffffffff
	// escape) for ELF-64 (spec.md §4.5). Here the length counts the header
	// fields that follow it; WriteCUHeader widens it to the whole section
	// once atoms have been placed.
	is64 := target.IsELF() && target.Is64Bit()
	lengthPos := 0
	if is64 {
		buf = append(buf, 0xff, 0xff, 0xff, 0xff)
		buf = append(buf, make([]byte, 8)...)
		lengthPos = 4
	} else {
		buf = append(buf, make([]byte, 4)...)
	}

	buf = append(buf, byte(dwarfVersion), 0) // version (uhalf, LE)

	// abbrev offset: always 0, this emitter's single abbrev table starts
	// .debug_abbrev (spec.md §4.5 "Offset abbrev_table_offset is 0").
	buf = append(buf, encodeData4(0)...)
	buf = append(buf, byte(target.PtrWidth()))

	buf = append(buf, byte(abbrevCompileUnit))
	buf = append(buf, encodeData4(h.StmtListOffset)...)
	buf = append(buf, encodeAddrWidth(h.LowPC, target.PtrWidth())...)
	buf = append(buf, encodeAddrWidth(h.HighPC, target.PtrWidth())...)
	buf = append(buf, encodeData4(h.NameOff)...)
	buf = append(buf, encodeData4(h.CompDirOff)...)
	buf = append(buf, encodeData4(h.ProducerOff)...)
	buf = append(buf, dwLangC99)

	contentLen := uint64(len(buf) - (lengthPos + 4))
	if is64 {
		putLength8(buf[lengthPos:lengthPos+8], contentLen)
	} else {
		putRef4(buf[lengthPos:lengthPos+4], uint32(contentLen))
	}
	return buf
}

func putLength8(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * uint(i)))
	}
}

// WriteStringTable flushes strtab's current contents into .debug_str at
// offset 0. Every DW_FORM_strp attribute this emitter writes is an offset
// into this same table, so it must be written after every declaration and
// the error set have been committed and before a consumer is handed the
// object (spec.md §3 "String Table"; written at Finalize time because the
// table keeps growing until the last commit).
func WriteStringTable(of ObjectFile, strtab *StringTable) error {
	sectionOff, _, err := of.SectionOffset(".debug_str")
	if err != nil {
		return ioError(".debug_str", err.Error())
	}
	buf := strtab.Bytes()
	if err := of.PwriteAll(buf, sectionOff); err != nil {
		return err
	}
	return of.GrowSection(".debug_str", sectionOff, uint64(len(buf)))
}

// arangesHeaderMax bounds the preallocated .debug_aranges region: a 12-byte
// header-ish preamble (length, version, info offset, addr/seg size padded
// to 2*ptrWidth) plus one range tuple plus a (0,0) sentinel, for the widest
// target this emitter supports (ptrWidth=8).
const arangesHeaderMax = 64

// WriteAranges emits the single-range .debug_aranges table spec.md §4.5
// describes: one tuple covering the whole text section, followed by a
// (0,0) sentinel, with entries starting at an offset aligned to
// 2*ptrWidth from the end of the header (DWARF4 §6.1.2).
func WriteAranges(of ObjectFile, target engine.Target, textLow, textHigh uint64) error {
	ptr := target.PtrWidth()
	var hdr []byte
	hdr = append(hdr, make([]byte, 4)...) // length, patched below
	hdr = append(hdr, byte(2), 0)         // version 2 (DWARF4 §6.1.2 table is always v2)
	hdr = append(hdr, encodeData4(0)...)  // debug_info_offset: single CU at 0
	hdr = append(hdr, byte(ptr))          // address_size
	hdr = append(hdr, byte(0))            // segment_selector_size

	alignTo := 2 * ptr
	for len(hdr)%alignTo != 0 {
		hdr = append(hdr, 0)
	}

	hdr = append(hdr, encodeAddrWidth(textLow, ptr)...)
	hdr = append(hdr, encodeAddrWidth(textHigh-textLow, ptr)...)
	hdr = append(hdr, make([]byte, 2*ptr)...) // (0,0) sentinel

	contentLen := uint32(len(hdr) - 4)
	putRef4(hdr[0:4], contentLen)

	if uint32(len(hdr)) > arangesHeaderMax {
		return headerOverflowError(".debug_aranges", "aranges table exceeds preallocated region")
	}
	hdr = append(hdr, infoPadding(arangesHeaderMax-uint32(len(hdr)))...)

	sectionOff, _, err := of.SectionOffset(".debug_aranges")
	if err != nil {
		return ioError(".debug_aranges", err.Error())
	}
	return of.PwriteAll(hdr, sectionOff)
}

// LineHeaderMax bounds the preallocated region at the start of .debug_line
// reserved for the program header (version, header_length, standard
// opcode table, directory/file tables) before the first SrcFn's prologue.
const lineHeaderMax = 128

// WriteLineHeader emits the .debug_line program header spec.md §4.5
// describes: version 4, a self-referential header_length, standard opcode
// lengths for opcodes 1..lnsSetISA, zero include directories, one file
// entry (rootSourcePath, directory index 0, mtime 0, size 0), and the file
// table terminator. Padding uses DW_LNS_negate_stmt so a consumer that
// ignores header_length still parses correctly (spec.md §4.5).
func WriteLineHeader(of ObjectFile, rootSourcePath string) error {
	body := buildLineHeaderBody(rootSourcePath)

	var buf []byte
	buf = append(buf, byte(lineVersion), 0)
	buf = append(buf, encodeData4(uint32(len(body)))...)
	buf = append(buf, body...)

	if uint32(len(buf)) > lineHeaderMax {
		return headerOverflowError(".debug_line", "line program header exceeds preallocated region")
	}
	buf = append(buf, linePadding(lineHeaderMax-uint32(len(buf)))...)

	sectionOff, _, err := of.SectionOffset(".debug_line")
	if err != nil {
		return ioError(".debug_line", err.Error())
	}
	return of.PwriteAll(buf, sectionOff)
}

func buildLineHeaderBody(rootSourcePath string) []byte {
	var b []byte
	b = append(b, byte(lineMinInstructionLength))
	b = append(b, byte(lineMaxOpsPerInstruction))
	b = append(b, byte(lineDefaultIsStmt))
	lineBase := int8(lineLineBase)
	b = append(b, byte(lineBase))
	b = append(b, byte(lineLineRange))
	b = append(b, byte(lnsOpcodeBase))
	// standard_opcode_lengths[1..opcode_base-1]: number of ULEB128
	// operands each standard opcode takes (DWARF4 §6.2.4).
	b = append(b, []byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}...)

	b = append(b, 0) // include_directories: none, terminator only

	b = append(b, []byte(rootSourcePath)...)
	b = append(b, 0)
	b = append(b, uleb128(0)...) // directory index
	b = append(b, uleb128(0)...) // mtime
	b = append(b, uleb128(0)...) // length
	b = append(b, 0)             // file_names terminator

	return b
}
