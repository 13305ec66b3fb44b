package dwarfinc

import "fmt"

// lineProgram builds one SrcFn's line-number program per spec.md §4.2: a
// fixed-width prologue carrying three relocation slots at constant offsets
// (so later patches can rewrite them without touching anything else), one
// DW_LNS_copy per emitted row, and a terminator.
//
// Layout (ptrWidth = target address size in bytes):
//
//	byte 0            : DW_LNS_extended_op prefix (0)
//	byte 1             : extended instruction length (always 1 + ptrWidth)
//	byte 2             : DW_LNE_set_address
//	bytes 3..3+ptrWidth: vaddr (relocation slot 0, raw little-endian)
//	+1                 : DW_LNS_advance_line
//	+4                 : line delta, ULEB128-fixed-4 (relocation slot 1)
//	+1                 : DW_LNS_set_file
//	+4                 : file index, ULEB128-fixed-4 (relocation slot 2)
//	+1                 : DW_LNS_copy
//	...                : one DW_LNS_copy per subsequent row
//	terminator         : DW_LNS_extended_op, 1, DW_LNE_end_sequence
type lineProgram struct {
	ptrWidth int
}

// vaddrOffset, lineDeltaOffset and fileIndexOffset are the fixed byte offsets
// of the program's three relocation slots, measured from the start of the
// SrcFn's record (spec.md §4.2 "fixed offsets so relocation doesn't need to
// re-scan the instruction stream").
func (lp *lineProgram) vaddrOffset() uint32     { return 3 }
func (lp *lineProgram) lineDeltaOffset() uint32 { return lp.vaddrOffset() + uint32(lp.ptrWidth) + 1 }
func (lp *lineProgram) fileIndexOffset() uint32 { return lp.lineDeltaOffset() + 5 }
func (lp *lineProgram) prologueLen() uint32     { return lp.fileIndexOffset() + 4 + 1 } // +1 for DW_LNS_copy

// lineTerminatorLen is the fixed length of the end-of-sequence marker appended
// after the prologue's first row and any subsequent DW_LNS_copy rows.
const lineTerminatorLen = 3 // extended_op, length=1, DW_LNE_end_sequence

// uleb128Fixed4 encodes v as exactly 4 bytes: three continuation bytes
// followed by a terminal byte with bit 7 clear, so the slot's width never
// changes even though the encoded value does (spec.md Glossary
// "ULEB128-fixed-4"). The 4 bytes carry 4*7=28 payload bits, so values up to
// 2^28-1 round-trip; bits above bit 27 are dropped.
func uleb128Fixed4(v uint32) [4]byte {
	var out [4]byte
	for i := 0; i < 3; i++ {
		out[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	out[3] = byte(v & 0x7f)
	return out
}

// build emits the full program for one function with numRows total rows
// (the function's own line plus any later statement boundaries tracked for
// it), targeting file index fileIndex. srcLine is the value written into the
// advance_line slot: the caller passes the line delta from the previous
// function (the absolute line for the first function).
func (lp *lineProgram) build(srcLine uint32, fileIndex uint32, numRows int) []byte {
	if numRows < 1 {
		numRows = 1
	}
	buf := make([]byte, 0, lp.prologueLen()+uint32(numRows-1)+lineTerminatorLen)

	buf = append(buf, lnsExtendedOp, byte(1+lp.ptrWidth), lneSetAddress)
	buf = append(buf, make([]byte, lp.ptrWidth)...) // vaddr relocation slot, patched later

	buf = append(buf, lnsAdvanceLine)
	delta := uleb128Fixed4(srcLine)
	buf = append(buf, delta[:]...)

	buf = append(buf, lnsSetFile)
	idx := uleb128Fixed4(fileIndex)
	buf = append(buf, idx[:]...)

	buf = append(buf, lnsCopy)
	for i := 1; i < numRows; i++ {
		buf = append(buf, lnsCopy)
	}

	buf = append(buf, lnsExtendedOp, 1, lneEndSequence)
	return buf
}

// patchVaddr rewrites relocation slot 0 in place with addr's little-endian
// encoding at the given pointer width (spec.md §4.2 "the codegen pass writes
// the real address directly into this fixed slot once it's known").
func patchVaddr(buf []byte, ptrWidth int, addr uint64) error {
	off := int((&lineProgram{ptrWidth: ptrWidth}).vaddrOffset())
	if off+ptrWidth > len(buf) {
		return fmt.Errorf("line program too short for vaddr slot")
	}
	for i := 0; i < ptrWidth; i++ {
		buf[off+i] = byte(addr >> (8 * uint(i)))
	}
	return nil
}

// expectedLen returns the byte length build would produce for the given
// row count, without constructing the buffer — used by the emitter to size
// allocate_or_grow_line calls before the program is built.
func (lp *lineProgram) expectedLen(numRows int) uint32 {
	if numRows < 1 {
		numRows = 1
	}
	return lp.prologueLen() + uint32(numRows-1) + lineTerminatorLen
}
