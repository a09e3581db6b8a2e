// Package types provides shared types used across the dupescout codebase.
package types

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
)

// FileRecord holds metadata for one indexed path.
//
// Path is the identity key: absolute and NFC-normalized, unique within an
// Index. Name and Size are derived from the file on disk and are recomputed
// whenever the on-disk size differs from the stored one. SortedSize is a
// copy of Size kept as a separate sort key so alternate ordering strategies
// can evolve without touching the raw size field.
type FileRecord struct {
	Path       string `json:"-"`
	Size       int64  `json:"size"`
	Name       string `json:"name"`
	Hash       string `json:"hash,omitempty"`
	SortedSize int64  `json:"sorted_size"`
}

// Index maps absolute NFC-normalized paths to their records.
type Index map[string]*FileRecord

// Records returns all records ordered by SortedSize ascending, with Path as
// the tie-breaker for determinism.
func (ix Index) Records() []*FileRecord {
	recs := make([]*FileRecord, 0, len(ix))
	for _, r := range ix {
		recs = append(recs, r)
	}
	slices.SortFunc(recs, func(a, b *FileRecord) int {
		if c := cmp.Compare(a.SortedSize, b.SortedSize); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	return recs
}

// DuplicateGroup is an ordered list of paths judged mutually similar.
// A valid group always has at least two members.
type DuplicateGroup []string

// Groups maps group identifiers ("group_1", "group_2", ...) to their member
// paths. Identifiers are stable within one grouping run only.
type Groups map[string]DuplicateGroup

// GroupID builds the identifier for the n-th emitted group (1-based).
func GroupID(n int) string {
	return fmt.Sprintf("group_%d", n)
}

// IDs returns group identifiers in emission order (group_1, group_2, ...).
// Lexicographic sorting would interleave group_10 with group_1, so ids are
// ordered by their numeric suffix.
func (g Groups) IDs() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(len(a), len(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

// Sorted is an ordered collection that maintains sort order by a key
// function. T is the element type, K is the comparable key type. Once
// constructed, items are guaranteed to be sorted by key, which makes the
// binary-searched Window lookups valid.
type Sorted[T any, K cmp.Ordered] struct {
	items   []T
	keyFunc func(T) K
}

// NewSorted creates a sorted collection from items using keyFunc for
// ordering. Items are copied and sorted at construction time.
func NewSorted[T any, K cmp.Ordered](items []T, keyFunc func(T) K) Sorted[T, K] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return cmp.Compare(keyFunc(a), keyFunc(b))
	})
	return Sorted[T, K]{items: sorted, keyFunc: keyFunc}
}

// Items returns the sorted items.
func (s Sorted[T, K]) Items() []T { return s.items }

// Len returns the number of items.
func (s Sorted[T, K]) Len() int { return len(s.items) }

// Window returns the half-open index range [lo, hi) of items whose key k
// satisfies low <= k <= high. Binary search keeps candidate lookups at
// O(log n) regardless of collection size.
func (s Sorted[T, K]) Window(low, high K) (lo, hi int) {
	lo = sort.Search(len(s.items), func(i int) bool {
		return s.keyFunc(s.items[i]) >= low
	})
	hi = sort.Search(len(s.items), func(i int) bool {
		return s.keyFunc(s.items[i]) > high
	})
	return lo, hi
}
