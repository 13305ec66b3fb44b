package dwarfinc

import (
	"testing"

	"github.com/xyproto/dwarfinc/internal/engine"
)

func TestWriteAbbrevTableTerminators(t *testing.T) {
	of := newMemObjectFile(map[string]uint64{".debug_abbrev": 1024})
	if err := WriteAbbrevTable(of); err != nil {
		t.Fatalf("WriteAbbrevTable: %v", err)
	}
	off, size, err := of.SectionOffset(".debug_abbrev")
	if err != nil {
		t.Fatalf("SectionOffset: %v", err)
	}
	buf := of.buf[off : off+size]
	if buf[len(buf)-1] != 0 {
		t.Fatal("abbreviation table must end with a final 0 byte")
	}
	if len(buf) != len(abbrevTableBytes()) {
		t.Fatalf("section size %d does not match abbrevTableBytes length %d", len(buf), len(abbrevTableBytes()))
	}
}

func TestCUHeaderFitsWithinRegion(t *testing.T) {
	of := newMemObjectFile(map[string]uint64{".debug_info": 4096})
	tg := engine.MustNewTarget(engine.FormatELF, 8, engine.LittleEndian)
	h := CUHeader{StmtListOffset: 0, LowPC: 0x1000, HighPC: 0x2000, NameOff: 1, CompDirOff: 2, ProducerOff: 3}
	if err := WriteCUHeader(of, tg, h, defaultHeaderRegions); err != nil {
		t.Fatalf("WriteCUHeader: %v", err)
	}
	off, _, _ := of.SectionOffset(".debug_info")
	if of.buf[off+uint64(defaultHeaderRegions.CUHeaderMax)-1] != 0 {
		t.Fatal("trailing pad1 byte at the end of the reserved header region should be 0")
	}
}

func TestCUHeaderOverflowIsFatal(t *testing.T) {
	of := newMemObjectFile(map[string]uint64{".debug_info": 4096})
	tg := engine.MustNewTarget(engine.FormatELF, 8, engine.LittleEndian)
	tiny := headerRegions{CUHeaderMax: 4}
	err := WriteCUHeader(of, tg, CUHeader{}, tiny)
	if err == nil {
		t.Fatal("expected HeaderOverflow error for an undersized region")
	}
	ee, ok := err.(*EmitError)
	if !ok || ee.Kind != KindHeaderOverflow {
		t.Fatalf("expected KindHeaderOverflow, got %v", err)
	}
}

func TestCUHeader64BitELFUsesEscapedLength(t *testing.T) {
	tg := engine.MustNewTarget(engine.FormatELF, 8, engine.LittleEndian)
	buf := buildCUHeaderBytes(tg, CUHeader{})
	for i := 0; i < 4; i++ {
		if buf[i] != 0xff {
			t.Fatalf("ELF-64 CU header should start with the 0xffffffff escape, byte %d = %#x", i, buf[i])
		}
	}
}

func TestCUHeader32BitUsesPlainLength(t *testing.T) {
	tg := engine.MustNewTarget(engine.FormatELF, 4, engine.LittleEndian)
	buf := buildCUHeaderBytes(tg, CUHeader{})
	if buf[0] == 0xff && buf[1] == 0xff && buf[2] == 0xff && buf[3] == 0xff {
		t.Fatal("32-bit target should not use the 64-bit length escape")
	}
}

func TestWriteAranges(t *testing.T) {
	of := newMemObjectFile(map[string]uint64{".debug_aranges": 256})
	tg := engine.MustNewTarget(engine.FormatELF, 8, engine.LittleEndian)
	if err := WriteAranges(of, tg, 0x1000, 0x2000); err != nil {
		t.Fatalf("WriteAranges: %v", err)
	}
	off, _, _ := of.SectionOffset(".debug_aranges")
	buf := of.buf[off : off+arangesHeaderMax]
	// Version (2 bytes at offset 4) must be 2 per DWARF4 §6.1.2.
	if buf[4] != 2 || buf[5] != 0 {
		t.Fatalf("aranges version = %d %d, want 2 0", buf[4], buf[5])
	}
}

func TestWriteStringTableRoundTrips(t *testing.T) {
	of := newMemObjectFile(map[string]uint64{".debug_str": 256})
	st := NewStringTable()
	off := st.MakeString("pkg.foo")
	if err := WriteStringTable(of, st); err != nil {
		t.Fatalf("WriteStringTable: %v", err)
	}
	sectionOff, size, _ := of.SectionOffset(".debug_str")
	buf := of.buf[sectionOff : sectionOff+size]
	got := string(buf[off : off+uint32(len("pkg.foo"))])
	if got != "pkg.foo" {
		t.Fatalf("round-tripped string = %q, want %q", got, "pkg.foo")
	}
	if buf[0] != 0 {
		t.Fatal("offset 0 must be the empty string's NUL terminator")
	}
}

func TestWriteLineHeaderFileEntry(t *testing.T) {
	of := newMemObjectFile(map[string]uint64{".debug_line": 4096})
	if err := WriteLineHeader(of, "main.zig"); err != nil {
		t.Fatalf("WriteLineHeader: %v", err)
	}
	off, _, _ := of.SectionOffset(".debug_line")
	buf := of.buf[off : off+lineHeaderMax]
	if buf[0] != byte(lineVersion) {
		t.Fatalf("line version = %d, want %d", buf[0], lineVersion)
	}
	// header_length occupies bytes [2:6); body should follow immediately.
	headerLen := decodeRef4(buf[2:6])
	body := buildLineHeaderBody("main.zig")
	if int(headerLen) != len(body) {
		t.Fatalf("declared header_length %d does not match actual body length %d", headerLen, len(body))
	}
}
