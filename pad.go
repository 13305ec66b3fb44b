package dwarfinc

import "bytes"

// maxPadding is the iovec-array limit the NOP Padding Writer's assert in
// spec.md §4.6 refers to (prev_padding + next_padding <= 1_044_480 bytes,
// i.e. 255 iovecs' worth of 4096-byte pages).
const maxPadding = 1_044_480

// advancePC0 is a deliberately non-minimal 3-byte ULEB128 encoding of
// DW_LNS_advance_pc(0): opcode byte, then 0 encoded with one redundant
// continuation byte. Used to absorb an odd padding count in the line
// program variant (spec.md §4.6).
var advancePC0 = []byte{lnsAdvancePC, 0x80, 0x00}

// infoPadding returns n bytes of .debug_info filler: abbreviation code 0,
// which closes off a (possibly empty) DIE's children and is otherwise a
// no-op to a consumer walking the DIE tree (spec.md §4.6 "info variant").
func infoPadding(n uint32) []byte {
	if n == 0 {
		return nil
	}
	return make([]byte, n) // zero-valued bytes == abbrev code 0
}

// linePadding returns n bytes of .debug_line filler built from
// DW_LNS_negate_stmt, which toggles the is_stmt flag and otherwise emits no
// row — harmless to a consumer scanning for DW_LNS_copy/extended ops
// (spec.md §4.6 "line-program variant"). An odd n of 3 or more is absorbed
// by replacing the final 3 bytes with a redundant advance_pc(0) rather than
// leaving a lone trailing negate_stmt, matching consumers that prefer
// even-length padding runs; n == 1 is a single negate_stmt.
func linePadding(n uint32) []byte {
	if n == 0 {
		return nil
	}
	if n%2 == 0 || n < uint32(len(advancePC0)) {
		return bytes.Repeat([]byte{lnsNegateStmt}, int(n))
	}
	buf := make([]byte, 0, n)
	buf = append(buf, bytes.Repeat([]byte{lnsNegateStmt}, int(n)-len(advancePC0))...)
	buf = append(buf, advancePC0...)
	return buf
}

// writeNopPadded performs the single vectored write described in spec.md
// §4.6: prevPad bytes of filler, then payload, then nextPad bytes of
// filler, then (if trailingZero) one more zero byte. offset is the absolute
// file offset of the first byte of prevPad.
func writeNopPadded(of ObjectFile, offset uint64, prevPad, payload, nextPad []byte, trailingZero bool) error {
	if uint32(len(prevPad))+uint32(len(nextPad)) > maxPadding {
		panic("writeNopPadded: prev_padding + next_padding exceeds iovec limit")
	}
	iov := make([][]byte, 0, 4)
	if len(prevPad) > 0 {
		iov = append(iov, prevPad)
	}
	if len(payload) > 0 {
		iov = append(iov, payload)
	}
	if len(nextPad) > 0 {
		iov = append(iov, nextPad)
	}
	if trailingZero {
		iov = append(iov, []byte{0})
	}
	return of.PwritevAll(iov, offset)
}
