package dwarfinc

import (
	"debug/dwarf"
	"testing"

	"github.com/xyproto/dwarfinc/internal/engine"
)

// TestRoundTripThroughStandardLibraryDWARFReader verifies the emitted
// .debug_abbrev/.debug_info/.debug_line/.debug_str sections parse back
// through the standard library's own DWARF reader (spec.md's SUPPLEMENTED
// FEATURES: a golden round-trip test, grounded the same way elf_test.go and
// macho_test.go in the teacher read their own output back with debug/elf and
// debug/macho instead of re-deriving every field by hand). A byte-diff test
// alone would not catch e.g. a form/encoding mismatch that debug/dwarf
// itself would refuse to parse.
func TestRoundTripThroughStandardLibraryDWARFReader(t *testing.T) {
	of := newMemObjectFile(map[string]uint64{
		".debug_info":    8192,
		".debug_line":    8192,
		".debug_abbrev":  1024,
		".debug_aranges": 256,
		".debug_str":     1024,
	})
	target := engine.MustNewTarget(engine.FormatELF, 8, engine.LittleEndian)
	e, err := NewEmitter(of, target, "main.zig", "/home/user/proj", "dwarfinc")
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	i32 := &Type{Kind: TypeInteger, IntBits: 32, IntSigned: true}
	h := e.InitDecl(DeclFunction, "pkg.add")
	decl := Decl{Kind: DeclFunction, Name: "pkg.add", RetType: i32, HasRuntimeBits: true, SourceLine: 4, FileIndex: 1}
	if err := e.CommitDecl(h, decl, 0x2000, 0x2010, 2); err != nil {
		t.Fatalf("CommitDecl: %v", err)
	}
	if err := e.CommitErrorSet(nil); err != nil {
		t.Fatalf("CommitErrorSet: %v", err)
	}
	if err := e.Finalize(0x2000, 0x2010); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	section := func(name string) []byte {
		off, size, err := of.SectionOffset(name)
		if err != nil {
			t.Fatalf("SectionOffset(%q): %v", name, err)
		}
		return of.buf[off : off+size]
	}

	data, err := dwarf.New(
		section(".debug_abbrev"),
		nil, // aranges: not needed by dwarf.New's DIE walk
		nil, // frame
		section(".debug_info"),
		section(".debug_line"),
		nil, // pubnames
		nil, // ranges
		section(".debug_str"),
	)
	if err != nil {
		t.Fatalf("dwarf.New rejected the emitted sections: %v", err)
	}

	r := data.Reader()
	var sawCU, sawSubprogram, sawBaseType bool
	for {
		entry, err := r.Next()
		if err != nil {
			t.Fatalf("Reader.Next: %v", err)
		}
		if entry == nil {
			break
		}
		switch entry.Tag {
		case dwarf.TagCompileUnit:
			sawCU = true
			if name, _ := entry.Val(dwarf.AttrName).(string); name != "main.zig" {
				t.Fatalf("CU name = %q, want %q", name, "main.zig")
			}
		case dwarf.TagSubprogram:
			sawSubprogram = true
			if name, _ := entry.Val(dwarf.AttrName).(string); name != "pkg.add" {
				t.Fatalf("subprogram name = %q, want %q", name, "pkg.add")
			}
		case dwarf.TagBaseType:
			sawBaseType = true
		}
	}
	if !sawCU {
		t.Fatal("reader never produced a compile-unit entry")
	}
	if !sawSubprogram {
		t.Fatal("reader never produced pkg.add's subprogram entry")
	}
	if !sawBaseType {
		t.Fatal("reader never produced the i32 base-type entry the return value references")
	}
}
