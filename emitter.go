package dwarfinc

import (
	"fmt"
	"os"

	"github.com/xyproto/dwarfinc/internal/engine"
)

// Verbose gates the non-fatal UnresolvedType diagnostic path (spec.md §7:
// "log and fall back to pad1; not fatal"). The teacher never reaches for a
// logging library for this class of diagnostic — safe_buffer.go and
// elf_sections.go both gate fmt.Fprintf(os.Stderr, ...) behind a
// package-level bool — so this emitter does the same rather than
// introducing zerolog/zap/slog where nothing in the pack does.
var Verbose bool

// DeclKind discriminates the two declaration shapes spec.md §4.3 gives
// emission rules for.
type DeclKind int

const (
	DeclFunction DeclKind = iota
	DeclGlobalVar
)

// Decl is the subset of the front-end semantic module's per-declaration
// facts this emitter consumes (spec.md §6 "Consumed (from the semantic
// module)"): everything needed to build one .debug_info DIE and, for
// functions, one .debug_line fragment.
type Decl struct {
	Kind           DeclKind
	Name           string // fully qualified name
	RetType        *Type  // nil or ignored unless HasRuntimeBits
	HasRuntimeBits bool
	SourceLine     uint32 // line of the opening brace
	FileIndex      uint32 // constant 1 for this emitter (spec.md §4.2)
}

// DeclHandle is the stable reference init_decl hands back to the caller for
// later commit_decl / free_decl calls (spec.md §5's required per-decl
// sequence: init_decl -> codegen -> commit_decl).
type DeclHandle struct {
	name   string
	atomID ID
	fnID   ID // noID for DeclGlobalVar
}

// Emitter is the incremental DWARF emitter described by spec.md as a whole:
// it owns the atom/srcfn registries (§3), the two section allocators
// (§4.1), the string table (§3), and the deferred-relocation queue (§4.4),
// and drives the DIE Builder (§4.3) and Line Program Builder (§4.2) per
// declaration.
//
// Not safe for concurrent use: spec.md §5 requires a single logical owner
// invoking init_decl/commit_decl/free_decl/commit_error_set in the stated
// order, with no internal task scheduler.
type Emitter struct {
	of     ObjectFile
	target engine.Target
	strtab *StringTable

	atoms  *recordList
	srcfns *recordList

	infoAlloc *sectionAllocator
	lineAlloc *sectionAllocator

	declsByName map[string]DeclHandle

	deferred deferredRelocQueue
	// errorSetAtom is the atom holding the global error set's DIE once
	// CommitErrorSet has placed it; errorSetPlaced lets CommitDecl reject a
	// decl committed after CommitErrorSet (spec.md §9 "behaviour ... is
	// undefined and should be rejected").
	errorSetAtom   ID
	errorSetPlaced bool
	finalized      bool

	prevCloseBraceLine uint32

	compDirOff  uint32
	producerOff uint32
	nameOff     uint32
}

// NewTarget validates and builds the engine.Target a compile runs against,
// surfacing a width outside {4, 8} as this package's own KindUnsupportedTarget
// (spec.md §7) instead of engine's plain error — callers that already have a
// validated engine.Target (tests, callers embedded in a larger linker that
// did this check itself) can skip straight to NewEmitter.
func NewTarget(format engine.Format, ptrWidth int, endian engine.Endian) (engine.Target, error) {
	target, err := engine.NewTarget(format, ptrWidth, endian)
	if err != nil {
		return engine.Target{}, unsupportedTargetError(err.Error())
	}
	return target, nil
}

// NewEmitter constructs an Emitter for one compile. name/compDir/producer
// are written into the string table immediately because their offsets are
// needed by the CU header, which this constructor writes along with the
// fixed abbreviation table and the .debug_line program header — the three
// header regions that never move once reserved (spec.md §4.5).
func NewEmitter(of ObjectFile, target engine.Target, rootSourcePath, compDir, producer string) (*Emitter, error) {
	e := &Emitter{
		of:          of,
		target:      target,
		strtab:      NewStringTable(),
		atoms:       newRecordList(),
		srcfns:      newRecordList(),
		declsByName: make(map[string]DeclHandle),
		errorSetAtom: noID,
	}
	e.infoAlloc = &sectionAllocator{
		of: of, section: ".debug_info", list: e.atoms,
		headerBytes: defaultHeaderRegions.CUHeaderMax, plusOneTerminator: true,
		alignment: 1,
	}
	e.lineAlloc = &sectionAllocator{
		of: of, section: ".debug_line", list: e.srcfns,
		headerBytes: lineHeaderMax, plusOneTerminator: false, lineVariant: true,
		alignment: 1,
	}

	e.nameOff = e.strtab.MakeString(rootSourcePath)
	e.compDirOff = e.strtab.MakeString(compDir)
	e.producerOff = e.strtab.MakeString(producer)

	if err := WriteAbbrevTable(of); err != nil {
		return nil, err
	}
	if err := WriteLineHeader(of, rootSourcePath); err != nil {
		return nil, err
	}
	if err := WriteCUHeader(of, target, CUHeader{
		NameOff: e.nameOff, CompDirOff: e.compDirOff, ProducerOff: e.producerOff,
	}, defaultHeaderRegions); err != nil {
		return nil, err
	}
	return e, nil
}

// InitDecl allocates (or returns the existing) atom/srcfn slots for name,
// the first step of spec.md §5's required sequence. Calling it twice for
// the same name returns the same handle — re-emission reuses the original
// record rather than allocating a fresh one.
func (e *Emitter) InitDecl(kind DeclKind, name string) DeclHandle {
	if h, ok := e.declsByName[name]; ok {
		return h
	}
	h := DeclHandle{name: name, atomID: e.atoms.alloc(), fnID: noID}
	if kind == DeclFunction {
		h.fnID = e.srcfns.alloc()
	}
	e.declsByName[name] = h
	return h
}

// FreeDecl unlinks h's atom (and srcfn, if any) from the active chain and
// inserts them into the advisory free set (spec.md §3 "Lifecycle", §5
// "free_decl may be called at any time not overlapping init/commit").
func (e *Emitter) FreeDecl(h DeclHandle) {
	if e.atoms.get(h.atomID).live {
		e.atoms.markFree(h.atomID)
	}
	if h.fnID != noID && e.srcfns.get(h.fnID).live {
		e.srcfns.markFree(h.fnID)
	}
	delete(e.declsByName, h.name)
}

// CommitDecl builds and places h's .debug_info DIE (and, for functions, its
// .debug_line fragment), per spec.md §4.3/§4.2. lowPC/highPC/numRows are
// supplied by the code generator once addresses are known (spec.md §1:
// "the code generator that fills in virtual addresses" is out of scope as
// a collaborator, but its output is this call's input).
//
// Rejects being called after commitErrorSet for this compile (spec.md §9
// open question: "behaviour if a commit occurs after commit_error_set is
// undefined and should be rejected").
func (e *Emitter) CommitDecl(h DeclHandle, decl Decl, lowPC, highPC uint64, numRows int) error {
	if e.errorSetPlaced {
		return fmt.Errorf("commit_decl(%q) called after commit_error_set", decl.Name)
	}

	builder := newDIEBuilder(e.target, e.strtab, e.logUnresolved)

	switch decl.Kind {
	case DeclFunction:
		var ret *Type
		if decl.HasRuntimeBits {
			ret = decl.RetType
		}
		if err := builder.WriteFunctionDIE(decl.Name, lowPC, highPC, ret); err != nil {
			return err
		}
	case DeclGlobalVar:
		// Emits nothing: documented gap, spec.md §4.3 "Global variable:
		// currently emits nothing".
	}

	payload, sameAtomSites, deferred := builder.Finish()

	if err := e.placeInfoPayload(h.atomID, payload, sameAtomSites); err != nil {
		return err
	}

	if len(deferred) > 0 {
		atomOff := e.atoms.get(h.atomID).off
		for _, pu := range deferred {
			for _, localSite := range pu.sites {
				e.deferred.push(pu.sig, atomOff+localSite)
			}
		}
	}

	if decl.Kind == DeclFunction {
		lp := &lineProgram{ptrWidth: e.target.PtrWidth()}
		lineDelta := decl.SourceLine - e.prevCloseBraceLine
		body := lp.build(lineDelta, decl.FileIndex, numRows)
		if err := e.placeLinePayload(h.fnID, body); err != nil {
			return err
		}
		if err := e.patchLineVaddr(h.fnID, lowPC); err != nil {
			return err
		}
		e.prevCloseBraceLine = decl.SourceLine
	}
	return nil
}

// placeInfoPayload allocates payload's slot in .debug_info (growing or
// migrating as needed, spec.md §4.1), fixes up payload's same-atom ref4
// sites to be CU-relative, and writes payload plus the NOP padding that
// must surround it.
func (e *Emitter) placeInfoPayload(id ID, payload []byte, sameAtomSites []uint32) error {
	if err := e.infoAlloc.AllocateOrGrow(id, uint32(len(payload))); err != nil {
		return err
	}
	rec := e.atoms.get(id)

	for _, s := range sameAtomSites {
		local := decodeRef4(payload[s : s+4])
		putRef4(payload[s:s+4], rec.off+local)
	}

	return e.writePlaced(e.atoms, ".debug_info", id, payload, infoPadding)
}

func (e *Emitter) placeLinePayload(id ID, payload []byte) error {
	if err := e.lineAlloc.AllocateOrGrow(id, uint32(len(payload))); err != nil {
		return err
	}
	return e.writePlaced(e.srcfns, ".debug_line", id, payload, linePadding)
}

// neighborBounds returns the end-of-extent of id's current predecessor (or
// headerBytes, the end of the section's fixed header region, if id is
// first), read *after* AllocateOrGrow has run so it reflects id's final
// placement rather than wherever it sat before a possible migration.
func neighborBounds(list *recordList, id ID, headerBytes uint32) uint32 {
	rec := list.get(id)
	if rec.prev == noID {
		return headerBytes
	}
	prev := list.get(rec.prev)
	return prev.off + prev.length
}

// writePlaced writes payload at its now-final placement, surrounded by
// explicit NOP padding on both sides: prevPad fills whatever gap exists
// between the previous sibling (or the section header) and this record's
// off, and nextPad fills the gap to the next sibling, or is empty if this
// record is now last (spec.md §8 item 1's adjacency invariant, kept true by
// construction rather than by relying on the backing file's zero-fill).
// Info atoms that land last also get the single trailing zero byte that
// closes the CU's children (spec.md §3 Atom invariant's "+1"); line
// fragments never do, because their own terminator opcode is already part
// of payload (spec.md §4.2).
func (e *Emitter) writePlaced(list *recordList, section string, id ID, payload []byte, padFn func(uint32) []byte) error {
	rec := list.get(id)
	headerBytes := defaultHeaderRegions.CUHeaderMax
	if section == ".debug_line" {
		headerBytes = lineHeaderMax
	}
	prevEnd := neighborBounds(list, id, headerBytes)

	sectionOff, _, err := e.of.SectionOffset(section)
	if err != nil {
		return ioError(section, err.Error())
	}

	var prevPad []byte
	if rec.off > prevEnd {
		prevPad = padFn(rec.off - prevEnd)
	}

	isLast := rec.next == noID
	var nextPad []byte
	trailingZero := false
	if isLast {
		trailingZero = section == ".debug_info"
	} else {
		next := list.get(rec.next)
		gapStart := rec.off + rec.length
		if next.off > gapStart {
			nextPad = padFn(next.off - gapStart)
		}
	}

	return writeNopPadded(e.of, sectionOff+uint64(prevEnd), prevPad, payload, nextPad, trailingZero)
}

// patchLineVaddr rewrites fnID's reloc slot 0 with the function's final
// virtual address (spec.md §4.2).
func (e *Emitter) patchLineVaddr(fnID ID, vaddr uint64) error {
	rec := e.srcfns.get(fnID)
	sectionOff, _, err := e.of.SectionOffset(".debug_line")
	if err != nil {
		return ioError(".debug_line", err.Error())
	}
	encoded := encodeAddrWidth(vaddr, e.target.PtrWidth())
	lp := &lineProgram{ptrWidth: e.target.PtrWidth()}
	off := sectionOff + uint64(rec.off) + uint64(lp.vaddrOffset())
	return e.of.PwriteAll(encoded, off)
}

// logUnresolved is dieBuilder's onUnresolved callback: a Verbose-gated
// diagnostic, matching spec.md §7's "UnresolvedType: ... fall back to pad1
// and log; not fatal".
func (e *Emitter) logUnresolved(typeName string) {
	if Verbose {
		fmt.Fprintf(os.Stderr, "dwarfinc: unresolved type %q, emitting pad1\n", typeName)
	}
}

// Finalize writes the compile-wide facts that are only known once codegen
// has processed every declaration: the program's overall [textLow,
// textHigh) range, rewritten into the CU header and into .debug_aranges's
// single range entry (spec.md §4.5), and the accumulated string table every
// strp attribute in this compile's DIEs references. It does not drain the
// deferred relocation queue — that is CommitErrorSet's job, run separately
// per spec.md §5's ordering ("all declarations ... must be committed before
// commit_error_set").
func (e *Emitter) Finalize(textLow, textHigh uint64) error {
	if err := WriteCUHeader(e.of, e.target, CUHeader{
		StmtListOffset: 0,
		LowPC:          textLow,
		HighPC:         textHigh,
		NameOff:        e.nameOff,
		CompDirOff:     e.compDirOff,
		ProducerOff:    e.producerOff,
	}, defaultHeaderRegions); err != nil {
		return err
	}
	if err := WriteAranges(e.of, e.target, textLow, textHigh); err != nil {
		return err
	}
	return WriteStringTable(e.of, e.strtab)
}

// CommitErrorSet materializes a synthetic DIE for the global error set,
// places it as a fresh atom, and drains the deferred relocation queue
// against it (spec.md §4.4). Must run exactly once per compile, after every
// declaration has been committed; a later CommitDecl call is rejected (see
// CommitDecl).
func (e *Emitter) CommitErrorSet(errorNames []string) error {
	if e.errorSetPlaced {
		return fmt.Errorf("commit_error_set called twice for this compile")
	}

	ty := &Type{Kind: TypeErrorSet, Name: "anyerror", ErrorNames: errorNames}
	builder := newDIEBuilder(e.target, e.strtab, e.logUnresolved)
	if _, err := builder.buildTypeDIE(ty); err != nil {
		return err
	}
	payload, _, _ := builder.Finish()

	h := e.InitDecl(DeclGlobalVar, "$anyerror")
	if err := e.placeInfoPayload(h.atomID, payload, nil); err != nil {
		return err
	}
	e.errorSetAtom = h.atomID
	atomOff := e.atoms.get(h.atomID).off

	if err := e.deferred.drain(e.of, ".debug_info", func(want string) (uint32, bool) {
		if want != externalErrorSetSig {
			return 0, false
		}
		return atomOff, true
	}); err != nil {
		return err
	}
	e.errorSetPlaced = true
	return nil
}

func decodeRef4(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
