package dwarfinc

import (
	"fmt"

	"github.com/xyproto/dwarfinc/internal/engine"
)

// pendingTypeEntry tracks one structural type signature's resolution state
// within a single declaration's DIE walk (spec.md §4.4 "Pending Type-Reloc
// Table"). Offsets here are local to the declaration's in-progress atom
// buffer, not yet CU-relative — the atom's final placement (and therefore
// its CU-relative base) isn't known until allocate_or_grow_info runs, which
// happens only after the whole DIE walk finishes.
type pendingTypeEntry struct {
	sig      string
	resolved bool
	localOff uint32
	sites    []uint32 // local buffer offsets of ref4 slots awaiting localOff
}

// pendingTypeRelocTable resolves forward references within one declaration:
// a struct field may reference a type whose own DIE hasn't been walked yet
// (e.g. a self-referential pointer, or two types referencing each other).
// Entries are bucketed by engine.TypeKey's hash with chained equality checks
// on the full signature, mirroring the teacher's Vibe67HashMap/
// hashStringKey bucket-and-chain idiom (hashmap.go).
//
// A fresh table is created at the start of every commit_decl; whatever is
// still unresolved when the declaration's walk finishes is promoted into the
// emitter's deferredRelocQueue instead of failing the commit.
type pendingTypeRelocTable struct {
	buckets map[uint64][]*pendingTypeEntry
}

func newPendingTypeRelocTable() *pendingTypeRelocTable {
	return &pendingTypeRelocTable{buckets: make(map[uint64][]*pendingTypeEntry)}
}

func (t *pendingTypeRelocTable) entry(sig string) *pendingTypeEntry {
	h := engine.TypeKey(sig)
	for _, e := range t.buckets[h] {
		if e.sig == sig {
			return e
		}
	}
	e := &pendingTypeEntry{sig: sig}
	t.buckets[h] = append(t.buckets[h], e)
	return e
}

// RequestRef4 asks for sig's local DIE offset. If sig was already resolved
// within this declaration, it returns that offset immediately so the caller
// can patch its ref4 slot in place; otherwise the site is queued and the
// caller leaves the slot as a zero placeholder.
func (t *pendingTypeRelocTable) RequestRef4(sig string, localSite uint32) (localTarget uint32, ok bool) {
	e := t.entry(sig)
	if e.resolved {
		return e.localOff, true
	}
	e.sites = append(e.sites, localSite)
	return 0, false
}

// ResolveType records sig's own local DIE offset and returns every site that
// was waiting on it, for the caller to patch now.
func (t *pendingTypeRelocTable) ResolveType(sig string, localOff uint32) []uint32 {
	e := t.entry(sig)
	e.resolved = true
	e.localOff = localOff
	sites := e.sites
	e.sites = nil
	return sites
}

// pendingUnresolved is one signature's still-outstanding sites at the end of
// a declaration's walk, in buffer-local offsets.
type pendingUnresolved struct {
	sig   string
	sites []uint32
}

// drainUnresolved empties the table, returning everything that never
// resolved within this declaration. The caller (commitDecl) converts each
// local site to an offset within .debug_info once the atom is placed, then
// promotes it into the deferred reloc queue.
func (t *pendingTypeRelocTable) drainUnresolved() []pendingUnresolved {
	var out []pendingUnresolved
	for _, bucket := range t.buckets {
		for _, e := range bucket {
			if !e.resolved && len(e.sites) > 0 {
				out = append(out, pendingUnresolved{sig: e.sig, sites: e.sites})
			}
		}
	}
	t.buckets = make(map[uint64][]*pendingTypeEntry)
	return out
}

// deferredReloc is one relocation site awaiting a signature that wasn't
// resolvable within its own declaration's walk — typically a reference to
// an inferred error set or the global anyerror set, which only becomes
// known once every declaration has been committed (spec.md §4.4 "Deferred
// Reloc Queue").
type deferredReloc struct {
	sig  string
	site uint32 // offset of the ref4 slot within the section
}

// deferredRelocQueue persists across declarations and is drained exactly
// once, by commitErrorSet.
type deferredRelocQueue struct {
	entries []deferredReloc
}

func (q *deferredRelocQueue) push(sig string, siteAbsOffset uint32) {
	q.entries = append(q.entries, deferredReloc{sig: sig, site: siteAbsOffset})
}

// drain resolves every queued site against resolve, a lookup from signature
// to CU-relative DIE offset, writing each site exactly once.
func (q *deferredRelocQueue) drain(of ObjectFile, section string, resolve func(sig string) (uint32, bool)) error {
	for _, e := range q.entries {
		off, ok := resolve(e.sig)
		if !ok {
			return fmt.Errorf("unresolved deferred relocation for %q", e.sig)
		}
		if err := writeRef4(of, section, e.site, off); err != nil {
			return err
		}
	}
	q.entries = q.entries[:0]
	return nil
}

// writeRef4 patches a 4-byte little-endian CU-relative offset (DW_FORM_ref4)
// at absOffset within section.
func writeRef4(of ObjectFile, section string, absOffset uint32, cuRelOffset uint32) error {
	sectionOff, _, err := of.SectionOffset(section)
	if err != nil {
		return ioError(section, err.Error())
	}
	var buf [4]byte
	putRef4(buf[:], cuRelOffset)
	return of.PwriteAll(buf[:], sectionOff+uint64(absOffset))
}

// putRef4 writes v as a little-endian DW_FORM_ref4 value into buf[0:4].
func putRef4(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}
