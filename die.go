package dwarfinc

import "github.com/xyproto/dwarfinc/internal/engine"

// dieBuilder accumulates one declaration's .debug_info payload: a single
// function (subprogram) DIE followed by whatever auxiliary type DIEs its
// signature drags in, deduplicated within the declaration via
// pendingTypeRelocTable (spec.md §4.3/§4.4).
//
// Every ref4 site is written as a *local* placeholder — the buffer-relative
// offset of its target — because the atom's final CU-relative base isn't
// known until allocate_or_grow_info places it (spec.md §4.1). The caller
// (commitDecl) finalizes sameAtomSites by adding the atom's placed offset to
// each, once placement is known; sites left in the drained pendingUnresolved
// list are promoted to the persistent deferredRelocQueue instead.
type dieBuilder struct {
	target engine.Target
	strtab *StringTable
	pending *pendingTypeRelocTable

	buf           []byte
	sameAtomSites []uint32

	// onUnresolved is called once per TypeUnsupported encountered, so the
	// emitter can log it the way spec.md §7 requires for KindUnresolvedType
	// without die.go owning a logger itself.
	onUnresolved func(name string)
}

func newDIEBuilder(target engine.Target, strtab *StringTable, onUnresolved func(string)) *dieBuilder {
	return &dieBuilder{
		target:       target,
		strtab:       strtab,
		pending:      newPendingTypeRelocTable(),
		onUnresolved: onUnresolved,
	}
}

// WriteFunctionDIE emits the subprogram DIE for one function declaration:
// abbrevSubprogram with a ref4 to retType when it returns a value, or
// abbrevSubprogramRetVoid when it doesn't (spec.md §4.3).
func (b *dieBuilder) WriteFunctionDIE(name string, lowPC, highPC uint64, retType *Type) error {
	if retType == nil {
		b.buf = append(b.buf, byte(abbrevSubprogramRetVoid))
		b.buf = append(b.buf, b.strp(name)...)
		b.buf = append(b.buf, b.encodeAddr(lowPC)...)
		b.buf = append(b.buf, b.encodeAddr(highPC)...)
		return nil
	}
	b.buf = append(b.buf, byte(abbrevSubprogram))
	b.buf = append(b.buf, b.strp(name)...)
	b.buf = append(b.buf, b.encodeAddr(lowPC)...)
	b.buf = append(b.buf, b.encodeAddr(highPC)...)
	site := uint32(len(b.buf))
	b.buf = append(b.buf, 0, 0, 0, 0)
	return b.requestTypeRef(retType, site)
}

// Finish returns the built atom payload, the list of local offsets that
// need += atomOffset once placement is known, and whatever type references
// never resolved within this declaration.
func (b *dieBuilder) Finish() (payload []byte, sameAtomSites []uint32, deferred []pendingUnresolved) {
	return b.buf, b.sameAtomSites, b.pending.drainUnresolved()
}

// externalErrorSetSig is the fixed Pending Type-Reloc Table key every
// External type reference shares, regardless of the specific inferred
// error set a caller names. spec.md §4.4 resolves every unresolved
// inferred error set and every anyerror reference against the same
// synthesized global-error-set DIE, so the key they're queued under must
// be constant rather than derived from Signature — the whole point of
// External is that its real structural signature (its member names, for
// an inferred set) is not known yet.
const externalErrorSetSig = "anyerror"

// requestTypeRef patches the ref4 slot at siteLocal to point at ty's DIE,
// building ty's DIE now if this declaration hasn't emitted it yet and ty is
// something this declaration is able to emit (not External — see types.go).
func (b *dieBuilder) requestTypeRef(ty *Type, siteLocal uint32) error {
	if ty.External {
		// Never walked (spec.md §3 "External"): queue the site under the
		// fixed sentinel key so Finish() hands it to the emitter's
		// deferredRelocQueue instead of building a DIE here.
		b.pending.RequestRef4(externalErrorSetSig, siteLocal)
		return nil
	}

	sig := Signature(ty, b.target)
	if target, ok := b.pending.RequestRef4(sig, siteLocal); ok {
		putRef4(b.buf[siteLocal:siteLocal+4], target)
		b.sameAtomSites = append(b.sameAtomSites, siteLocal)
		return nil
	}

	localOff, err := b.buildTypeDIE(ty)
	if err != nil {
		return err
	}
	for _, s := range b.pending.ResolveType(sig, localOff) {
		putRef4(b.buf[s:s+4], localOff)
		b.sameAtomSites = append(b.sameAtomSites, s)
	}
	return nil
}

// buildTypeDIE appends ty's own DIE (and, recursively, whatever other type
// DIEs it references) to buf, returning its local offset. A "pointer-like
// optional" has no element to reference on the wire — unlike a plain
// pointer, it is a leaf base_type with DW_ATE_address encoding and no ref4
// at all (spec.md §4.3) — so it shares emitBaseType's path, not
// emitPointer's.
func (b *dieBuilder) buildTypeDIE(ty *Type) (uint32, error) {
	switch ty.Kind {
	case TypeBool, TypeInteger, TypeOptionalPointer:
		return b.emitBaseType(ty), nil
	case TypePointer:
		return b.emitPointer(ty)
	case TypeOptional:
		return b.emitOptional(ty)
	case TypeSlice:
		return b.emitSlice(ty)
	case TypeStruct:
		return b.emitStructLike(ty)
	case TypeEnum:
		return b.emitEnum(ty)
	case TypeTaggedUnion:
		return b.emitUnion(ty, true)
	case TypeBareUnion:
		return b.emitUnion(ty, false)
	case TypeErrorSet:
		return b.emitErrorSet(ty)
	case TypeErrorUnion:
		return b.emitErrorUnion(ty)
	default:
		if b.onUnresolved != nil {
			b.onUnresolved(ty.Name)
		}
		localOff := uint32(len(b.buf))
		b.buf = append(b.buf, byte(abbrevPad1))
		return localOff, nil
	}
}

func (b *dieBuilder) emitBaseType(ty *Type) uint32 {
	localOff := uint32(len(b.buf))
	name := ty.Name
	if name == "" {
		name = ty.signature()
	}
	size := ty.ByteSize
	if size == 0 {
		switch ty.Kind {
		case TypeBool:
			size = 1
		case TypeOptionalPointer:
			size = uint32(b.target.PtrWidth())
		default:
			size = uint32(ty.IntBits) / 8
		}
	}
	enc := byte(dwAteUnsigned)
	switch ty.Kind {
	case TypeBool:
		enc = dwAteBoolean
	case TypeOptionalPointer:
		enc = dwAteAddress
	default:
		if ty.IntSigned {
			enc = dwAteSigned
		}
	}
	b.buf = append(b.buf, byte(abbrevBaseType))
	b.buf = append(b.buf, b.strp(name)...)
	b.buf = append(b.buf, byte(size), enc)
	return localOff
}

func (b *dieBuilder) emitPointer(ty *Type) (uint32, error) {
	localOff := uint32(len(b.buf))
	b.buf = append(b.buf, byte(abbrevPointerType))
	b.buf = append(b.buf, byte(b.target.PtrWidth()))
	site := uint32(len(b.buf))
	b.buf = append(b.buf, 0, 0, 0, 0)
	if err := b.requestTypeRef(ty.Elem, site); err != nil {
		return 0, err
	}
	return localOff, nil
}

func (b *dieBuilder) emitStructLike(ty *Type) (uint32, error) {
	localOff := uint32(len(b.buf))
	b.buf = append(b.buf, byte(abbrevStructureType))
	b.buf = append(b.buf, b.strp(ty.Name)...)
	b.buf = append(b.buf, sleb128(int64(ty.ByteSize))...)
	for _, f := range ty.Fields {
		if err := b.emitMember(f); err != nil {
			return 0, err
		}
	}
	b.buf = append(b.buf, 0) // close children
	return localOff, nil
}

// emitOptional builds the two-field struct a non-pointer optional wraps its
// payload in: {maybe: bool, val: payload}, with maybe at offset 0 and val at
// abi_size - payload_abi_size (spec.md §4.3 "non-pointer optional"). Unlike
// emitStructLike, the member list isn't caller-supplied — the layout is
// derived here from ty.ByteSize and ty.Elem.ByteSize, the same way
// emitUnion/emitSlice derive their own member offsets rather than trusting a
// Fields slice built elsewhere.
func (b *dieBuilder) emitOptional(ty *Type) (uint32, error) {
	localOff := uint32(len(b.buf))
	b.buf = append(b.buf, byte(abbrevStructureType))
	b.buf = append(b.buf, b.strp(ty.Name)...)
	b.buf = append(b.buf, sleb128(int64(ty.ByteSize))...)

	if err := b.emitMember(Field{Name: "maybe", Type: &Type{Kind: TypeBool}, Offset: 0}); err != nil {
		return 0, err
	}
	valOff := ty.ByteSize - ty.Elem.ByteSize
	if err := b.emitMember(Field{Name: "val", Type: ty.Elem, Offset: valOff}); err != nil {
		return 0, err
	}
	b.buf = append(b.buf, 0)
	return localOff, nil
}

// emitSlice builds the {ptr: *T, len: usize} struct a slice is represented
// as: ptr at offset 0, len at sizeof(usize) — this target's pointer width,
// since usize is architecture-word-sized (spec.md §4.3 "slice").
func (b *dieBuilder) emitSlice(ty *Type) (uint32, error) {
	localOff := uint32(len(b.buf))
	b.buf = append(b.buf, byte(abbrevStructureType))
	b.buf = append(b.buf, b.strp(ty.Name)...)
	b.buf = append(b.buf, sleb128(int64(ty.ByteSize))...)

	ptrWidth := uint32(b.target.PtrWidth())
	ptrType := &Type{Kind: TypePointer, Elem: ty.Elem}
	if err := b.emitMember(Field{Name: "ptr", Type: ptrType, Offset: 0}); err != nil {
		return 0, err
	}
	usize := &Type{Kind: TypeInteger, Name: "usize", IntBits: int(ptrWidth) * 8, IntSigned: false}
	if err := b.emitMember(Field{Name: "len", Type: usize, Offset: ptrWidth}); err != nil {
		return 0, err
	}
	b.buf = append(b.buf, 0)
	return localOff, nil
}

func (b *dieBuilder) emitMember(f Field) error {
	b.buf = append(b.buf, byte(abbrevStructMember))
	b.buf = append(b.buf, b.strp(f.Name)...)
	site := uint32(len(b.buf))
	b.buf = append(b.buf, 0, 0, 0, 0)
	b.buf = append(b.buf, sleb128(int64(f.Offset))...)
	return b.requestTypeRef(f.Type, site)
}

func (b *dieBuilder) emitEnum(ty *Type) (uint32, error) {
	localOff := uint32(len(b.buf))
	b.buf = append(b.buf, byte(abbrevEnumerationType))
	b.buf = append(b.buf, b.strp(ty.Name)...)
	size := ty.ByteSize
	if size == 0 {
		size = 4
	}
	b.buf = append(b.buf, byte(size))
	for _, e := range ty.Enumerators {
		b.buf = append(b.buf, byte(abbrevEnumerator))
		b.buf = append(b.buf, b.strp(e.Name)...)
		b.buf = append(b.buf, encodeData8(uint64(e.Value))...)
	}
	b.buf = append(b.buf, 0)
	return localOff, nil
}

// unionLayout computes a tagged union's tag and payload member offsets from
// TagSize/TagAlign/PayloadSize/PayloadAlign (spec.md §4.3 "member offsets
// depend on tag-vs-payload alignment"): whichever member has the larger
// alignment sits at offset 0, and the other follows immediately after it,
// rounded up to its own alignment. Swapping which side has the larger
// alignment flips which offset is 0 (spec.md §8 boundary behavior).
func unionLayout(ty *Type) (payloadOff, tagOff uint32) {
	if ty.TagAlign > ty.PayloadAlign {
		return alignUp32(ty.TagSize, ty.PayloadAlign), 0
	}
	return 0, alignUp32(ty.PayloadSize, ty.TagAlign)
}

func alignUp32(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}

// emitUnion builds a union_type DIE. For a tagged union, an extra synthetic
// "tag" member of TagSize bytes is emitted at the offset unionLayout
// computes; the reference from that member to its (synthesized,
// unsigned-integer) type is routed through requestTypeRef exactly like any
// other field — so if the tag's integer type hasn't been emitted yet in
// this declaration, it is built right here as a sibling, and if it already
// has been (a second union in the same declaration reusing the same tag
// width), the existing DIE is reused. A bare union has no tag and every
// variant shares offset 0, the ordinary meaning of a union.
func (b *dieBuilder) emitUnion(ty *Type, tagged bool) (uint32, error) {
	localOff := uint32(len(b.buf))
	b.buf = append(b.buf, byte(abbrevUnionType))
	b.buf = append(b.buf, b.strp(ty.Name)...)
	b.buf = append(b.buf, encodeData4(ty.ByteSize)...)

	var payloadOff uint32
	if tagged {
		var tagOff uint32
		payloadOff, tagOff = unionLayout(ty)
		tagType := &Type{Kind: TypeInteger, Name: "", IntBits: int(ty.TagSize) * 8, IntSigned: false}
		if err := b.emitMember(Field{Name: "tag", Type: tagType, Offset: tagOff}); err != nil {
			return 0, err
		}
	}
	for _, v := range ty.Variants {
		if v.Payload == nil {
			continue
		}
		if err := b.emitMember(Field{Name: v.Name, Type: v.Payload, Offset: payloadOff}); err != nil {
			return 0, err
		}
	}
	b.buf = append(b.buf, 0)
	return localOff, nil
}

func (b *dieBuilder) emitErrorSet(ty *Type) (uint32, error) {
	enumerators := make([]Enumerator, len(ty.ErrorNames)+1)
	enumerators[0] = Enumerator{Name: "(no error)", Value: 0}
	for i, n := range ty.ErrorNames {
		enumerators[i+1] = Enumerator{Name: n, Value: int64(i + 1)}
	}
	return b.emitEnum(&Type{Kind: TypeEnum, Name: ty.Name, ByteSize: ty.ByteSize, Enumerators: enumerators})
}

// emitErrorUnion builds the {value, err} union_type spec.md §4.3 describes:
// err (the discriminant) always at offset 0 and value at
// align_up(errset.abi_size, abi_align) — a fixed rule, unlike a general
// tagged union's alignment-based swap, since err's own type already carries
// "no error" as one of its enumerators rather than needing a separate
// synthetic tag. ty.PayloadOff is the caller-computed align_up(...) value.
func (b *dieBuilder) emitErrorUnion(ty *Type) (uint32, error) {
	localOff := uint32(len(b.buf))
	b.buf = append(b.buf, byte(abbrevUnionType))
	b.buf = append(b.buf, b.strp(ty.Name)...)
	b.buf = append(b.buf, encodeData4(ty.ByteSize)...)

	if ty.ErrorSet != nil {
		if err := b.emitMember(Field{Name: "err", Type: ty.ErrorSet, Offset: 0}); err != nil {
			return 0, err
		}
	}
	if ty.Payload != nil {
		if err := b.emitMember(Field{Name: "value", Type: ty.Payload, Offset: ty.PayloadOff}); err != nil {
			return 0, err
		}
	}
	b.buf = append(b.buf, 0)
	return localOff, nil
}

func (b *dieBuilder) strp(s string) []byte {
	off := b.strtab.MakeString(s)
	buf := make([]byte, 4)
	putRef4(buf, off)
	return buf
}

func (b *dieBuilder) encodeAddr(v uint64) []byte {
	return encodeAddrWidth(v, b.target.PtrWidth())
}

func encodeData4(v uint32) []byte {
	buf := make([]byte, 4)
	putRef4(buf, v)
	return buf
}
