package dwarfinc

import "testing"

func TestPendingTypeRelocTableResolvesQueuedSites(t *testing.T) {
	tab := newPendingTypeRelocTable()

	if _, ok := tab.RequestRef4("u32", 10); ok {
		t.Fatal("u32 should not resolve before ResolveType is called")
	}
	if _, ok := tab.RequestRef4("u32", 20); ok {
		t.Fatal("second request for u32 should also be unresolved")
	}

	sites := tab.ResolveType("u32", 100)
	if len(sites) != 2 || sites[0] != 10 || sites[1] != 20 {
		t.Fatalf("ResolveType should return both queued sites in order, got %v", sites)
	}

	target, ok := tab.RequestRef4("u32", 30)
	if !ok || target != 100 {
		t.Fatalf("a request after resolution should return the resolved offset immediately, got (%d, %v)", target, ok)
	}
}

func TestPendingTypeRelocTableDrainUnresolved(t *testing.T) {
	tab := newPendingTypeRelocTable()
	tab.RequestRef4("anyerror", 5)
	tab.RequestRef4("anyerror", 15)
	tab.ResolveType("u32", 0) // resolved entries should not be drained

	out := tab.drainUnresolved()
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 unresolved signature, got %d", len(out))
	}
	if out[0].sig != "anyerror" || len(out[0].sites) != 2 {
		t.Fatalf("unexpected drain result: %+v", out[0])
	}

	// Draining empties the table.
	if out2 := tab.drainUnresolved(); len(out2) != 0 {
		t.Fatalf("second drain should be empty, got %v", out2)
	}
}

// TestDeferredRelocQueueOnePerReference covers spec.md §8's "an inferred
// error set referenced before resolution produces exactly one entry in the
// Deferred Reloc Queue per reference site".
func TestDeferredRelocQueueOnePerReference(t *testing.T) {
	var q deferredRelocQueue
	q.push("anyerror", 1000)
	q.push("anyerror", 2000)
	if len(q.entries) != 2 {
		t.Fatalf("expected 2 queued entries, got %d", len(q.entries))
	}

	of := newMemObjectFile(map[string]uint64{".debug_info": 4096})
	resolved := map[string]uint32{"anyerror": 777}
	if err := q.drain(of, ".debug_info", func(sig string) (uint32, bool) {
		off, ok := resolved[sig]
		return off, ok
	}); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(q.entries) != 0 {
		t.Fatal("queue should be empty after drain")
	}

	for _, site := range []uint64{1000, 2000} {
		got := decodeRef4(of.buf[site : site+4])
		if got != 777 {
			t.Fatalf("site %d = %d, want 777", site, got)
		}
	}
}

func TestDeferredRelocQueueUnresolvedIsError(t *testing.T) {
	var q deferredRelocQueue
	q.push("nosuchtype", 10)
	of := newMemObjectFile(map[string]uint64{".debug_info": 4096})
	err := q.drain(of, ".debug_info", func(sig string) (uint32, bool) { return 0, false })
	if err == nil {
		t.Fatal("expected an error for an unresolvable signature")
	}
}

func TestPutRef4LittleEndian(t *testing.T) {
	var buf [4]byte
	putRef4(buf[:], 0x01020304)
	want := [4]byte{0x04, 0x03, 0x02, 0x01}
	if buf != want {
		t.Fatalf("putRef4 = %x, want %x", buf, want)
	}
	if got := decodeRef4(buf[:]); got != 0x01020304 {
		t.Fatalf("decodeRef4(putRef4(v)) = %#x, want %#x", got, 0x01020304)
	}
}
