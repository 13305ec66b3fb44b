package dwarfinc

import (
	"testing"

	"github.com/xyproto/dwarfinc/internal/engine"
)

func TestSignatureIncludesTargetABI(t *testing.T) {
	i32 := &Type{Kind: TypeInteger, IntBits: 32, IntSigned: true}
	t32 := engine.MustNewTarget(engine.FormatELF, 4, engine.LittleEndian)
	t64 := engine.MustNewTarget(engine.FormatELF, 8, engine.LittleEndian)

	sig32 := Signature(i32, t32)
	sig64 := Signature(i32, t64)
	if sig32 == sig64 {
		t.Fatalf("signatures for the same structural type under different targets must differ, both were %q", sig32)
	}
}

func TestSignatureStructuralEquality(t *testing.T) {
	target := engine.MustNewTarget(engine.FormatELF, 8, engine.LittleEndian)
	a := &Type{Kind: TypeInteger, IntBits: 32, IntSigned: true}
	b := &Type{Kind: TypeInteger, IntBits: 32, IntSigned: true} // distinct pointer, same shape
	if Signature(a, target) != Signature(b, target) {
		t.Fatal("structurally identical types should share a signature regardless of pointer identity")
	}

	c := &Type{Kind: TypeInteger, IntBits: 32, IntSigned: false}
	if Signature(a, target) == Signature(c, target) {
		t.Fatal("signed and unsigned ints of the same width must have distinct signatures")
	}
}

func TestSignatureVoidIsStable(t *testing.T) {
	target := engine.MustNewTarget(engine.FormatELF, 8, engine.LittleEndian)
	if Signature(nil, target) != "void@"+target.String() {
		t.Fatalf("nil type signature = %q", Signature(nil, target))
	}
}

func TestNewTargetRejectsUnsupportedWidth(t *testing.T) {
	if _, err := engine.NewTarget(engine.FormatELF, 2, engine.LittleEndian); err == nil {
		t.Fatal("pointer width 2 should be rejected (spec.md §7 UnsupportedTarget)")
	}
	if _, err := engine.NewTarget(engine.FormatELF, 16, engine.LittleEndian); err == nil {
		t.Fatal("pointer width 16 should be rejected")
	}
}

func TestNewTargetWrapsUnsupportedWidthAsEmitError(t *testing.T) {
	_, err := NewTarget(engine.FormatELF, 2, engine.LittleEndian)
	if err == nil {
		t.Fatal("expected an error for pointer width 2")
	}
	ee, ok := err.(*EmitError)
	if !ok || ee.Kind != KindUnsupportedTarget {
		t.Fatalf("expected KindUnsupportedTarget, got %v", err)
	}
}

func TestMachOForcesLittleEndian(t *testing.T) {
	tg, err := engine.NewTarget(engine.FormatMachO, 8, engine.BigEndian)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	if tg.Endian() != engine.LittleEndian {
		t.Fatal("Mach-O target must always report little-endian, spec.md §6")
	}
}
