package types

import (
	"testing"
)

func TestRecordsOrdering(t *testing.T) {
	ix := Index{
		"/b": {Path: "/b", Size: 100, SortedSize: 100},
		"/a": {Path: "/a", Size: 100, SortedSize: 100},
		"/c": {Path: "/c", Size: 50, SortedSize: 50},
	}
	recs := ix.Records()
	want := []string{"/c", "/a", "/b"}
	for i, p := range want {
		if recs[i].Path != p {
			t.Errorf("Records()[%d] = %s, want %s", i, recs[i].Path, p)
		}
	}
}

func TestSortedWindow(t *testing.T) {
	items := []int64{10, 20, 20, 20, 30, 50}
	s := NewSorted(items, func(v int64) int64 { return v })

	cases := []struct {
		low, high int64
		lo, hi    int
	}{
		{20, 20, 1, 4},  // exact bucket
		{15, 35, 1, 5},  // tolerance window
		{60, 70, 6, 6},  // past the end
		{0, 5, 0, 0},    // before the start
		{10, 50, 0, 6},  // everything
	}
	for _, tc := range cases {
		lo, hi := s.Window(tc.low, tc.high)
		if lo != tc.lo || hi != tc.hi {
			t.Errorf("Window(%d, %d) = (%d, %d), want (%d, %d)", tc.low, tc.high, lo, hi, tc.lo, tc.hi)
		}
	}
}

func TestGroupIDsNumericOrder(t *testing.T) {
	g := Groups{}
	for i := 1; i <= 12; i++ {
		g[GroupID(i)] = DuplicateGroup{"/a", "/b"}
	}
	ids := g.IDs()
	if ids[0] != "group_1" || ids[1] != "group_2" || ids[9] != "group_10" || ids[11] != "group_12" {
		t.Errorf("IDs() not in numeric order: %v", ids)
	}
}
