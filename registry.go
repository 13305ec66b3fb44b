package dwarfinc

// ID is a stable handle into a recordList. Indices are never reused while
// the emitter is alive (spec.md §3 "never destroyed while the emitter is
// alive"), so a caller may hold an ID across many commits.
//
// This is the arena-allocated-nodes rewrite called for in spec.md §9: an ID
// is an index into the backing slice, so it stays valid even when append
// relocates that slice's storage, unlike a raw pointer into it.
type ID uint32

// noID marks an absent link (no prev/next/first/last).
const noID = ^ID(0)

// record is one Atom or SrcFn slot: an (off, len) extent plus sibling links
// ordered by ascending off (spec.md §3).
type record struct {
	off, length uint32
	prev, next  ID
	// live is false once free'd. The node itself is never removed from the
	// backing slice (IDs must stay stable), only unlinked and marked dead.
	live bool
}

// recordList is a doubly linked list of records plus an advisory free set,
// shared by the .debug_info atom list and the .debug_line srcfn list
// (spec.md §4.1 states both operations share one policy).
type recordList struct {
	recs       []record
	first, last ID
	free       map[ID]struct{}
}

func newRecordList() *recordList {
	return &recordList{first: noID, last: noID, free: make(map[ID]struct{})}
}

// alloc reserves a fresh ID for a record not yet linked into the list.
func (l *recordList) alloc() ID {
	id := ID(len(l.recs))
	l.recs = append(l.recs, record{prev: noID, next: noID})
	return id
}

func (l *recordList) get(id ID) *record { return &l.recs[id] }

func (l *recordList) isEmpty() bool { return l.first == noID }

// linkAsOnlyMember makes id the sole entry of the list.
func (l *recordList) linkAsOnlyMember(id ID) {
	r := l.get(id)
	r.prev, r.next, r.live = noID, noID, true
	l.first, l.last = id, id
}

// linkAfterLast appends id after the current last element.
func (l *recordList) linkAfterLast(id ID) {
	r := l.get(id)
	r.prev = l.last
	r.next = noID
	r.live = true
	if l.last != noID {
		l.get(l.last).next = id
	}
	l.last = id
	if l.first == noID {
		l.first = id
	}
}

// unlink removes id from the active chain, splicing its neighbours together,
// and clears id's own prev/next links.
// id itself becomes free-list eligible; it is not marked dead here because
// freeDecl and migration have different liveness semantics.
func (l *recordList) unlink(id ID) {
	r := l.get(id)
	if r.prev != noID {
		l.get(r.prev).next = r.next
	} else {
		l.first = r.next
	}
	if r.next != noID {
		l.get(r.next).prev = r.prev
	} else {
		l.last = r.prev
	}
	r.prev, r.next = noID, noID
}

// markFree unlinks id and marks it dead, inserting it into the advisory
// free set (spec.md §3 "membership is advisory").
func (l *recordList) markFree(id ID) {
	l.unlink(id)
	l.get(id).live = false
	l.free[id] = struct{}{}
}

// reachable reports whether id is reachable from first/last traversal —
// used by the testable property in spec.md §8 item 4.
func (l *recordList) reachable(id ID) bool {
	for cur := l.first; cur != noID; cur = l.get(cur).next {
		if cur == id {
			return true
		}
	}
	return false
}

// usedSize returns last.off + last.len, optionally +1 for the terminating
// zero byte (spec.md §3 Atom invariant, §8 item 2). Zero when the list is
// empty.
func (l *recordList) usedSize(plusOneForTerminator bool) uint32 {
	if l.last == noID {
		return 0
	}
	last := l.get(l.last)
	n := last.off + last.length
	if plusOneForTerminator {
		n++
	}
	return n
}
