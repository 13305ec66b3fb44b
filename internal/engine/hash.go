package engine

import "hash/fnv"

// TypeKey hashes a canonical structural encoding of a type (its signature
// string, already required by spec.md §9 to include the target ABI) down to
// a uint64 suitable for use as a map key in the Pending Type-Reloc Table.
//
// Adapted from the teacher's hashStringKey (internal/engine/utils.go in the
// original), which hashes identifiers the same way for its own symbol maps.
func TypeKey(signature string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(signature))
	return h.Sum64()
}
