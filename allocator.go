package dwarfinc

import "math"

// minNopSize is the minimum padding representable between two fragments
// (spec.md Glossary "min_nop_size").
const minNopSize = 2

// padToIdeal reserves slack capacity so a small growth doesn't immediately
// trigger a migration: n + n/3, saturating at the uint32 maximum (spec.md
// §4.1 "Ideal-size policy", Glossary "pad_to_ideal"). The 4/3 factor is
// close to the teacher's own arena growth policy (arena.go
// ArenaGrowthNumerator/ArenaGrowthDenominator = 13/10, used there for the
// same reason: reserve headroom so repeated small allocations don't thrash
// a backing store).
func padToIdeal(n uint32) uint32 {
	inc := n / 3
	if n > math.MaxUint32-inc {
		return math.MaxUint32
	}
	return n + inc
}

// sectionAllocator implements the shared policy behind
// allocate_or_grow_line and allocate_or_grow_info (spec.md §4.1): one
// recordList, plus enough knowledge of its backing section to grow the
// file and NOP-pad vacated space when a record migrates.
type sectionAllocator struct {
	of          ObjectFile
	section     string
	list        *recordList
	headerBytes uint32
	// plusOneTerminator is true for .debug_info, where the section's used
	// size includes one extra byte for the terminating zero abbreviation
	// code that closes the CU's children (spec.md §3 Atom invariant).
	plusOneTerminator bool
	// lineVariant selects the line-program NOP pattern instead of the
	// info-variant one (spec.md §4.6).
	lineVariant bool
	alignment   uint64
}

// AllocateOrGrow places id in the section (first emission) or grows its
// existing slot in place or by migration (re-emission), per spec.md §4.1's
// five-step policy.
func (al *sectionAllocator) AllocateOrGrow(id ID, newLen uint32) error {
	rec := al.list.get(id)
	wasPlaced := rec.live
	oldOff, oldLen := rec.off, rec.length
	rec.length = newLen

	switch {
	case al.list.isEmpty():
		rec.off = padToIdeal(al.headerBytes)
		al.list.linkAsOnlyMember(id)
		return al.growSection()

	case !wasPlaced:
		// Brand-new record: appended after the current last, never
		// consulting the free set (spec.md §8 scenario E5: a new,
		// larger declaration is appended at the tail even though a
		// freed slot exists — the free set is advisory only).
		last := al.list.get(al.list.last)
		rec.off = last.off + padToIdeal(last.length)
		al.list.linkAfterLast(id)
		return al.growSection()

	case id == al.list.last:
		// Current last: grow in place, extend the section.
		return al.growSection()

	default:
		nextID := rec.next
		next := al.list.get(nextID)
		if rec.off+newLen+minNopSize <= next.off {
			// Still fits; off is unchanged, len already updated.
			return nil
		}
		return al.migrate(id, oldOff, oldLen)
	}
}

// migrate unlinks id, NOP-pads the space it vacated, and re-appends it
// after the current last (spec.md §4.1 step 4).
func (al *sectionAllocator) migrate(id ID, oldOff, oldLen uint32) error {
	rec := al.list.get(id)
	prevID := rec.prev

	sectionOff, _, err := al.of.SectionOffset(al.section)
	if err != nil {
		return ioError(al.section, err.Error())
	}
	if err := al.of.PwriteAll(al.nopPadding(oldLen), sectionOff+uint64(oldOff)); err != nil {
		return err
	}

	al.list.unlink(id)
	if prevID != noID {
		// The predecessor's gap to its new neighbour just grew by the
		// vacated extent; record it as advisory free capacity
		// (spec.md §3 "Free list").
		al.list.free[prevID] = struct{}{}
	}

	last := al.list.get(al.list.last)
	rec.off = last.off + padToIdeal(last.length)
	al.list.linkAfterLast(id)
	return al.growSection()
}

func (al *sectionAllocator) nopPadding(n uint32) []byte {
	if al.lineVariant {
		return linePadding(n)
	}
	return infoPadding(n)
}

// growSection computes the section's new used size and, if it no longer
// fits in the currently allocated region, asks the object-file collaborator
// for a fresh region and copies the existing content there (spec.md §4.1
// "Section growth").
func (al *sectionAllocator) growSection() error {
	curOff, curSize, err := al.of.SectionOffset(al.section)
	if err != nil {
		return ioError(al.section, err.Error())
	}
	needed := uint64(al.list.usedSize(al.plusOneTerminator))

	if needed <= al.of.AllocatedSize(curOff) {
		if needed != curSize {
			return al.of.GrowSection(al.section, curOff, needed)
		}
		al.of.MarkSectionDirty(al.section)
		return nil
	}

	newOff, err := al.of.FindFreeSpace(needed, al.alignment)
	if err != nil {
		return outOfMemoryError(al.section, err.Error())
	}
	if curSize > 0 {
		if err := al.of.CopyRangeAll(curOff, newOff, curSize); err != nil {
			return err
		}
	}
	return al.of.GrowSection(al.section, newOff, needed)
}
