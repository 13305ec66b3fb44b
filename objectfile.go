package dwarfinc

// ObjectFile is the narrow interface the emitter consumes from the
// surrounding object-file writer (ELF or Mach-O), per spec.md §6. The
// emitter never touches section headers directly; every byte that leaves
// the emitter's control passes through one of these methods.
//
// This interface is the boundary spec.md §1 calls "out of scope": the real
// implementation (owning section headers, program headers, load commands)
// lives in the linker. This repo supplies FileObjectFile (objectfile_impl.go,
// objectfile_unix.go/objectfile_other.go) as a reference implementation
// sufficient to drive the emitter's own tests and the cmd/dwarfsmoke demo,
// grounded on the teacher's ELFWriter/SegmentLayout bookkeeping
// (elf_writer.go) and DynamicSections byte-patching idiom
// (elf_sections.go updatePLTGOT/updateRelocationAddress).
type ObjectFile interface {
	// SectionOffset returns the current file offset and size of the named
	// section ("" size for a section not yet materialized).
	SectionOffset(name string) (fileOffset uint64, size uint64, err error)

	// AllocatedSize returns how many bytes are available starting at
	// offset before the backing storage must be relocated — i.e. the
	// capacity of the region currently reserved for the section that
	// starts there.
	AllocatedSize(offset uint64) uint64

	// FindFreeSpace asks the collaborator for a fresh, alignment-satisfying
	// region of at least needed bytes, used when a section must grow past
	// its currently allocated capacity.
	FindFreeSpace(needed uint64, alignment uint64) (offset uint64, err error)

	// PwriteAll writes buf at the given absolute file offset. A short
	// write is a fatal KindInputOutput error (spec.md §4.1 "Failure
	// semantics").
	PwriteAll(buf []byte, offset uint64) error

	// PwritevAll performs one vectored write of iovecs starting at offset,
	// used by the NOP Padding Writer (spec.md §4.6) to emit padding and
	// payload as a single syscall.
	PwritevAll(iovecs [][]byte, offset uint64) error

	// CopyRangeAll copies length bytes from srcOff to dstOff within the
	// file, used when a section is relocated to a freshly allocated
	// region.
	CopyRangeAll(srcOff, dstOff uint64, length uint64) error

	// GrowSection updates the collaborator's bookkeeping for the section's
	// new (offset, size), marking the section-header table dirty so it is
	// rewritten on the next flush.
	GrowSection(name string, newOffset, newSize uint64) error

	// MarkSectionDirty flags a section's own header (not the table) as
	// needing a rewrite, e.g. after a size-only change that doesn't move
	// the section.
	MarkSectionDirty(name string)
}
