package dwarfinc

// StringTable is the append-only, NUL-terminated byte buffer backing
// strp-form attributes in .debug_info and the file-name table in
// .debug_line. Offsets handed out by MakeString are stable for the
// lifetime of the emitter (spec.md §3 "String Table").
//
// Modeled on the teacher's dynstr string table (elf_sections.go
// DynamicSections.addString): a dedup map plus an append-only buffer, a
// leading NUL reserved for the empty string.
type StringTable struct {
	buf []byte
	off map[string]uint32
}

// NewStringTable returns a StringTable with the mandatory leading NUL byte
// already written, so offset 0 is always the empty string.
func NewStringTable() *StringTable {
	st := &StringTable{
		buf: []byte{0},
		off: map[string]uint32{"": 0},
	}
	return st
}

// MakeString appends s plus a NUL terminator, returning the offset at which
// it starts. Equal strings already present return their existing offset
// rather than duplicating storage — the dedup is an implementation choice
// that does not affect stability of previously returned offsets.
func (st *StringTable) MakeString(s string) uint32 {
	if off, ok := st.off[s]; ok {
		return off
	}
	off := uint32(len(st.buf))
	st.buf = append(st.buf, s...)
	st.buf = append(st.buf, 0)
	st.off[s] = off
	return off
}

// Bytes returns the raw .debug_str payload.
func (st *StringTable) Bytes() []byte { return st.buf }

// Len reports the current size of the string table in bytes.
func (st *StringTable) Len() int { return len(st.buf) }
