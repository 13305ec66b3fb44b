package dwarfinc

import (
	"bytes"
	"testing"
)

func TestLineProgramPrologueLayout64(t *testing.T) {
	lp := &lineProgram{ptrWidth: 8}
	got := lp.build(12, 1, 1)

	want := []byte{lnsExtendedOp, 0x09, lneSetAddress}
	want = append(want, make([]byte, 8)...) // vaddr placeholder
	want = append(want, lnsAdvanceLine)
	d := uleb128Fixed4(12)
	want = append(want, d[:]...)
	want = append(want, lnsSetFile)
	f := uleb128Fixed4(1)
	want = append(want, f[:]...)
	want = append(want, lnsCopy)
	want = append(want, lnsExtendedOp, 1, lneEndSequence)

	if !bytes.Equal(got, want) {
		t.Fatalf("prologue mismatch:\n got  %x\n want %x", got, want)
	}
}

func TestLineProgramRelocSlotOffsets64(t *testing.T) {
	lp := &lineProgram{ptrWidth: 8}
	if off := lp.vaddrOffset(); off != 3 {
		t.Errorf("vaddrOffset = %d, want 3", off)
	}
	if off := lp.lineDeltaOffset(); off != 12 {
		t.Errorf("lineDeltaOffset = %d, want 12 (3+ptr_width(8)+1)", off)
	}
	if off := lp.fileIndexOffset(); off != 17 {
		t.Errorf("fileIndexOffset = %d, want 17 (lineDeltaOffset+5)", off)
	}
}

func TestLineProgramRelocSlotOffsets32(t *testing.T) {
	lp := &lineProgram{ptrWidth: 4}
	if off := lp.vaddrOffset(); off != 3 {
		t.Errorf("vaddrOffset = %d, want 3", off)
	}
	if off := lp.lineDeltaOffset(); off != 8 {
		t.Errorf("lineDeltaOffset = %d, want 8 (3+ptr_width(4)+1)", off)
	}
	if off := lp.fileIndexOffset(); off != 13 {
		t.Errorf("fileIndexOffset = %d, want 13", off)
	}
}

func TestULEB128Fixed4AlwaysFourBytes(t *testing.T) {
	for _, v := range []uint32{0, 1, 12, 127, 128, 1 << 20, 1<<28 - 1} {
		out := uleb128Fixed4(v)
		if len(out) != 4 {
			t.Fatalf("uleb128Fixed4(%d) produced %d bytes, want 4", v, len(out))
		}
		// Decode back: three continuation bytes then a terminal byte.
		var decoded uint32
		for i := 0; i < 3; i++ {
			if out[i]&0x80 == 0 {
				t.Fatalf("byte %d of uleb128Fixed4(%d) should have continuation bit set", i, v)
			}
			decoded |= uint32(out[i]&0x7f) << (7 * uint(i))
		}
		if out[3]&0x80 != 0 {
			t.Fatalf("final byte of uleb128Fixed4(%d) should not have continuation bit set", v)
		}
		decoded |= uint32(out[3]) << 21
		if decoded != v {
			t.Fatalf("uleb128Fixed4(%d) round-tripped to %d", v, decoded)
		}
	}
}

func TestPatchVaddrRewritesSlotInPlace(t *testing.T) {
	lp := &lineProgram{ptrWidth: 8}
	buf := lp.build(5, 1, 1)
	if err := patchVaddr(buf, 8, 0xdeadbeefcafef00d); err != nil {
		t.Fatalf("patchVaddr: %v", err)
	}
	for i := 0; i < 8; i++ {
		want := byte(uint64(0xdeadbeefcafef00d) >> (8 * uint(i)))
		if buf[3+i] != want {
			t.Fatalf("vaddr byte %d = %#x, want %#x", i, buf[3+i], want)
		}
	}
}

func TestExpectedLenMatchesBuild(t *testing.T) {
	lp := &lineProgram{ptrWidth: 4}
	for _, rows := range []int{1, 2, 5} {
		got := lp.build(3, 1, rows)
		if uint32(len(got)) != lp.expectedLen(rows) {
			t.Errorf("rows=%d: expectedLen=%d, actual build len=%d", rows, lp.expectedLen(rows), len(got))
		}
	}
}

func TestLinePaddingEvenOddLengths(t *testing.T) {
	for _, n := range []uint32{0, 1, 2, 3, 7, 10} {
		p := linePadding(n)
		if uint32(len(p)) != n {
			t.Fatalf("linePadding(%d) returned %d bytes", n, len(p))
		}
		for _, b := range p {
			if b != lnsNegateStmt && b != lnsAdvancePC && b != 0x80 && b != 0x00 {
				t.Fatalf("linePadding(%d) contains unexpected byte %#x", n, b)
			}
		}
	}
}

func TestInfoPaddingIsZero(t *testing.T) {
	p := infoPadding(10)
	for i, b := range p {
		if b != 0 {
			t.Fatalf("infoPadding byte %d = %#x, want 0 (abbrev code 0)", i, b)
		}
	}
}
