package dwarfinc

import (
	"fmt"
	"os"
	"sync"
)

// sectionState tracks one section's current placement and reserved
// capacity within the backing file, mirroring the teacher's SegmentLayout
// (elf_writer.go) but keyed by DWARF section name instead of segment name.
type sectionState struct {
	offset    uint64
	size      uint64
	allocated uint64 // capacity reserved at offset, >= size
	dirty     bool
}

// FileObjectFile is a minimal ObjectFile backed by a real *os.File. It is
// not a linker: it has no section-header table, no program headers, and no
// notion of virtual addresses. It exists to give the emitter something real
// to write through in tests and in cmd/dwarfsmoke, matching the level of
// fidelity the teacher's own test harness expects from its ELF/Mach-O
// writers (elf_test.go, macho_test.go parse the bytes back with debug/elf
// and debug/macho rather than re-deriving every field by hand).
type FileObjectFile struct {
	mu       sync.Mutex
	f        *os.File
	sections map[string]*sectionState
	highWater uint64
}

// NewFileObjectFile opens (creating if needed) path and returns an
// ObjectFile writing through it. Each section named in initial starts with
// the given allocated capacity at a distinct, page-free offset chosen by
// the constructor.
func NewFileObjectFile(path string, initial map[string]uint64) (*FileObjectFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ioError("", fmt.Sprintf("open %s: %v", path, err))
	}
	fo := &FileObjectFile{f: f, sections: make(map[string]*sectionState)}
	for _, name := range orderedKeys(initial) {
		cap := initial[name]
		if err := fo.reserve(name, cap); err != nil {
			return nil, err
		}
	}
	return fo, nil
}

func orderedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Stable iteration matters for deterministic initial layout across
	// otherwise-equal runs; sort lexically like the teacher's module
	// ordering in BuildDWARF (other_examples dwarf_writer.go).
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func (fo *FileObjectFile) reserve(name string, capacity uint64) error {
	off := fo.highWater
	if err := fo.f.Truncate(int64(off + capacity)); err != nil {
		return ioError(name, fmt.Sprintf("reserve: %v", err))
	}
	fo.sections[name] = &sectionState{offset: off, allocated: capacity}
	fo.highWater = off + capacity
	return nil
}

func (fo *FileObjectFile) SectionOffset(name string) (uint64, uint64, error) {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	s, ok := fo.sections[name]
	if !ok {
		return 0, 0, fmt.Errorf("unknown section %q", name)
	}
	return s.offset, s.size, nil
}

func (fo *FileObjectFile) AllocatedSize(offset uint64) uint64 {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	for _, s := range fo.sections {
		if s.offset == offset {
			return s.allocated
		}
	}
	return 0
}

func (fo *FileObjectFile) FindFreeSpace(needed uint64, alignment uint64) (uint64, error) {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	off := fo.highWater
	if alignment > 1 {
		rem := off % alignment
		if rem != 0 {
			off += alignment - rem
		}
	}
	if err := fo.f.Truncate(int64(off + needed)); err != nil {
		return 0, ioError("", fmt.Sprintf("find free space: %v", err))
	}
	fo.highWater = off + needed
	return off, nil
}

func (fo *FileObjectFile) PwriteAll(buf []byte, offset uint64) error {
	n, err := fo.f.WriteAt(buf, int64(offset))
	if err != nil {
		return ioError("", fmt.Sprintf("pwrite at %d: %v", offset, err))
	}
	if n != len(buf) {
		return ioError("", fmt.Sprintf("short write at %d: wrote %d of %d", offset, n, len(buf)))
	}
	return nil
}

func (fo *FileObjectFile) CopyRangeAll(srcOff, dstOff uint64, length uint64) error {
	buf := make([]byte, length)
	n, err := fo.f.ReadAt(buf, int64(srcOff))
	if err != nil && uint64(n) != length {
		return ioError("", fmt.Sprintf("copy-range read at %d: %v", srcOff, err))
	}
	return fo.PwriteAll(buf, dstOff)
}

func (fo *FileObjectFile) GrowSection(name string, newOffset, newSize uint64) error {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	s, ok := fo.sections[name]
	if !ok {
		return fmt.Errorf("unknown section %q", name)
	}
	s.offset = newOffset
	s.size = newSize
	if s.allocated < newSize {
		s.allocated = newSize
	}
	s.dirty = true
	return nil
}

func (fo *FileObjectFile) MarkSectionDirty(name string) {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	if s, ok := fo.sections[name]; ok {
		s.dirty = true
	}
}

// Close flushes and closes the backing file.
func (fo *FileObjectFile) Close() error { return fo.f.Close() }

// File exposes the backing *os.File for read-back in tests.
func (fo *FileObjectFile) File() *os.File { return fo.f }
