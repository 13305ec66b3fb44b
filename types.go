package dwarfinc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xyproto/dwarfinc/internal/engine"
)

// TypeKind discriminates the shapes of type the DIE builder can emit
// (spec.md §4.3's enumerated list of recognized type shapes).
type TypeKind int

const (
	TypeBool TypeKind = iota
	TypeInteger
	TypePointer         // plain pointer: never null, DW_TAG_pointer_type only
	TypeOptionalPointer // pointer-like optional: null doubles as "absent"
	TypeOptional        // non-pointer optional: wrapped with an explicit present flag
	TypeSlice           // {ptr, len} pair
	TypeStruct          // struct or tuple (tuples are structs with numeric field names)
	TypeEnum
	TypeTaggedUnion
	TypeBareUnion
	TypeErrorSet
	TypeErrorUnion
	TypeUnsupported // no emission rule exists; falls back to a pad1 DIE
)

// Field is one member of a TypeStruct.
type Field struct {
	Name   string
	Type   *Type
	Offset uint32
}

// Enumerator is one member of a TypeEnum.
type Enumerator struct {
	Name  string
	Value int64
}

// Variant is one arm of a TypeTaggedUnion or TypeBareUnion. Payload may be
// nil for a void arm.
type Variant struct {
	Name    string
	Tag     int64
	Payload *Type
}

// Type describes one node of the type graph the DIE builder walks. It is
// intentionally one flat struct rather than an interface hierarchy with one
// implementation per kind, matching the teacher's preference for plain data
// structs with a discriminator field over deep interface trees (e.g.
// ErrorContext, SegmentLayout).
type Type struct {
	Kind     TypeKind
	Name     string // "" for anonymous/leaf types; required for aggregates
	ByteSize uint32

	IntBits   int
	IntSigned bool

	// Elem is the pointer/optional/slice element. Unused for
	// TypeOptionalPointer: a pointer-like optional has no element reference
	// on the wire (spec.md §4.3), only ByteSize.
	Elem *Type

	Fields []Field // struct / tuple

	Enumerators []Enumerator // enum

	TagSize      uint32 // tagged union
	TagAlign     uint32
	PayloadSize  uint32
	PayloadAlign uint32
	PayloadOff   uint32 // byte offset of the payload within the union's storage
	Variants     []Variant

	ErrorNames []string // error set membership

	Payload  *Type // error union
	ErrorSet *Type

	// External marks a type this declaration must reference but cannot
	// build itself — the global/inferred error set, resolved only once
	// every declaration has been committed (spec.md §4.4 "Deferred Reloc
	// Queue"). A reference to an External type is never walked; it is
	// always routed to the deferred queue under the fixed key
	// externalErrorSetSig (die.go), which commitErrorSet later resolves.
	External bool
}

// Signature returns ty's canonical structural-identity string, scoped to
// target — two structurally identical types compiled for different pointer
// widths or endianness are distinct Pending Type-Reloc Table entries
// (spec.md §4.4 "keyed... including target ABI").
func Signature(ty *Type, target engine.Target) string {
	return ty.signature() + "@" + target.String()
}

func (ty *Type) signature() string {
	if ty == nil {
		return "void"
	}
	switch ty.Kind {
	case TypeBool:
		return "bool"
	case TypeInteger:
		sign := "u"
		if ty.IntSigned {
			sign = "i"
		}
		return fmt.Sprintf("%s%d", sign, ty.IntBits)
	case TypePointer:
		return "*" + ty.Elem.signature()
	case TypeOptionalPointer:
		// Leaf base_type with no element reference on the wire (spec.md
		// §4.3), so the signature is keyed on byte size alone rather than
		// on an Elem that this kind has no use for.
		return fmt.Sprintf("?*addr%d", ty.ByteSize)
	case TypeOptional:
		return "?" + ty.Elem.signature()
	case TypeSlice:
		return "[]" + ty.Elem.signature()
	case TypeStruct:
		parts := make([]string, len(ty.Fields))
		for i, f := range ty.Fields {
			parts[i] = f.Name + ":" + f.Type.signature()
		}
		return fmt.Sprintf("struct %s{%s}", ty.Name, strings.Join(parts, ","))
	case TypeEnum:
		parts := make([]string, len(ty.Enumerators))
		for i, e := range ty.Enumerators {
			parts[i] = fmt.Sprintf("%s=%d", e.Name, e.Value)
		}
		return fmt.Sprintf("enum %s{%s}", ty.Name, strings.Join(parts, ","))
	case TypeTaggedUnion:
		return fmt.Sprintf("union(tagged) %s{%s}", ty.Name, variantSig(ty.Variants))
	case TypeBareUnion:
		return fmt.Sprintf("union(bare) %s{%s}", ty.Name, variantSig(ty.Variants))
	case TypeErrorSet:
		names := append([]string(nil), ty.ErrorNames...)
		sort.Strings(names)
		return "error{" + strings.Join(names, ",") + "}"
	case TypeErrorUnion:
		return ty.Payload.signature() + "!" + ty.ErrorSet.signature()
	default:
		return "unsupported:" + ty.Name
	}
}

func variantSig(variants []Variant) string {
	parts := make([]string, len(variants))
	for i, v := range variants {
		parts[i] = fmt.Sprintf("%s=%d:%s", v.Name, v.Tag, v.Payload.signature())
	}
	return strings.Join(parts, ",")
}
