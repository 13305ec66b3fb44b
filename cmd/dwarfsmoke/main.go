// Command dwarfsmoke drives the emitter end to end against a real scratch
// file: a handful of synthetic declarations, a commit_error_set, and a
// finalize, then reports the resulting section sizes. It exists to exercise
// dwarfinc the way a real incremental linker would, without needing an
// actual front end.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/dwarfinc"
	"github.com/xyproto/dwarfinc/internal/engine"
)

func main() {
	out := flag.String("o", "dwarfsmoke.dbg", "output scratch file path")
	ptrWidth := flag.Int("ptrwidth", 8, "pointer width in bytes (4 or 8)")
	machO := flag.Bool("macho", false, "use Mach-O container conventions instead of ELF")
	verbose := flag.Bool("v", false, "log unresolved-type fallbacks")
	flag.Parse()

	dwarfinc.Verbose = *verbose

	format := engine.FormatELF
	if *machO {
		format = engine.FormatMachO
	}
	target, err := dwarfinc.NewTarget(format, *ptrWidth, engine.LittleEndian)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwarfsmoke: %v\n", err)
		os.Exit(1)
	}

	of, err := dwarfinc.NewFileObjectFile(*out, map[string]uint64{
		".debug_info":    4096,
		".debug_line":    4096,
		".debug_abbrev":  1024,
		".debug_aranges": 256,
		".debug_str":     1024,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwarfsmoke: %v\n", err)
		os.Exit(1)
	}
	defer of.Close()

	e, err := dwarfinc.NewEmitter(of, target, "smoke.zig", "/tmp/smoke", "dwarfsmoke")
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwarfsmoke: new emitter: %v\n", err)
		os.Exit(1)
	}

	i64 := &dwarfinc.Type{Kind: dwarfinc.TypeInteger, IntBits: 64, IntSigned: true}
	mayFail := &dwarfinc.Type{Kind: dwarfinc.TypeErrorSet, External: true}

	decls := []struct {
		name           string
		ret            *dwarfinc.Type
		hasRuntimeBits bool
		line           uint32
		low, high      uint64
		rows           int
	}{
		{"main.add", i64, true, 3, 0x1000, 0x1020, 4},
		{"main.mayFail", mayFail, true, 12, 0x1020, 0x1060, 6},
		{"main.noop", nil, false, 20, 0x1060, 0x1064, 1},
	}

	for _, d := range decls {
		h := e.InitDecl(dwarfinc.DeclFunction, d.name)
		decl := dwarfinc.Decl{
			Kind:           dwarfinc.DeclFunction,
			Name:           d.name,
			RetType:        d.ret,
			HasRuntimeBits: d.hasRuntimeBits,
			SourceLine:     d.line,
			FileIndex:      1,
		}
		if err := e.CommitDecl(h, decl, d.low, d.high, d.rows); err != nil {
			fmt.Fprintf(os.Stderr, "dwarfsmoke: commit %s: %v\n", d.name, err)
			os.Exit(1)
		}
	}

	if err := e.CommitErrorSet([]string{"OutOfMemory", "FileNotFound"}); err != nil {
		fmt.Fprintf(os.Stderr, "dwarfsmoke: commit_error_set: %v\n", err)
		os.Exit(1)
	}

	if err := e.Finalize(0x1000, 0x1064); err != nil {
		fmt.Fprintf(os.Stderr, "dwarfsmoke: finalize: %v\n", err)
		os.Exit(1)
	}

	for _, sec := range []string{".debug_info", ".debug_line", ".debug_abbrev", ".debug_aranges", ".debug_str"} {
		off, size, err := of.SectionOffset(sec)
		if err != nil {
			continue
		}
		fmt.Printf("%-16s off=%-8d size=%d\n", sec, off, size)
	}
	fmt.Printf("-> wrote %s\n", *out)
}
