package grouper

import (
	"context"
	"errors"
	"testing"

	"github.com/dupescout/dupescout/internal/namenorm"
	"github.com/dupescout/dupescout/internal/types"
)

// fakeHasher serves canned hashes and errors, keyed by path.
type fakeHasher struct {
	hashes map[string]string
	calls  int
}

func (f *fakeHasher) Hash(path string, _ int64) (string, error) {
	f.calls++
	h, ok := f.hashes[path]
	if !ok {
		return "", errors.New("unreadable")
	}
	return h, nil
}

func record(path string, size int64) *types.FileRecord {
	return &types.FileRecord{Path: path, Size: size, SortedSize: size, Name: namenorm.Name(pathBase(path))}
}

func pathBase(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func index(recs ...*types.FileRecord) types.Index {
	ix := make(types.Index, len(recs))
	for _, r := range recs {
		ix[r.Path] = r
	}
	return ix
}

func group(t *testing.T, ix types.Index, opts Options, hasher Hasher) types.Groups {
	t.Helper()
	groups, err := New(ix, opts, hasher, false, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	return groups
}

func TestGroupExactDuplicates(t *testing.T) {
	ix := index(
		record("/d/report.txt", 100),
		record("/d/report.md", 100),
		record("/d/notes.txt", 50),
	)

	groups := group(t, ix, Options{Threshold: 1.0}, nil)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups["group_1"]
	if len(g) != 2 {
		t.Fatalf("expected 2 members, got %v", g)
	}
	for _, p := range g {
		if p == "/d/notes.txt" {
			t.Error("notes.txt must not join the report group")
		}
	}
}

func TestGroupSizeMismatchNeverCandidates(t *testing.T) {
	// Identical names, different sizes: with zero tolerance they are not
	// even compared.
	ix := index(
		record("/d/report.txt", 100),
		record("/d/report.md", 200),
	)
	if groups := group(t, ix, Options{Threshold: 0.1}, nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %v", groups)
	}
}

func TestGroupThreshold(t *testing.T) {
	ix := index(
		record("/d/report1.txt", 100), // ratio(report1, report2) = 1 - 1/7
		record("/d/report2.txt", 100),
	)

	if groups := group(t, ix, Options{Threshold: 0.8}, nil); len(groups) != 1 {
		t.Errorf("ratio 0.857 should pass threshold 0.8, got %v", groups)
	}
	if groups := group(t, ix, Options{Threshold: 0.9}, nil); len(groups) != 0 {
		t.Errorf("ratio 0.857 should fail threshold 0.9, got %v", groups)
	}
}

func TestGroupTolerance(t *testing.T) {
	ix := index(
		record("/d/video.mp4", 1000),
		record("/d/video.avi", 1040),
	)

	if groups := group(t, ix, Options{Threshold: 0.9}, nil); len(groups) != 0 {
		t.Errorf("zero tolerance must not group near sizes, got %v", groups)
	}
	if groups := group(t, ix, Options{Threshold: 0.9, Tolerance: 50}, nil); len(groups) != 1 {
		t.Errorf("tolerance 50 should group sizes 1000 and 1040, got %v", groups)
	}
}

func TestGroupNoOverlap(t *testing.T) {
	// Five same-size files with pairwise-similar names: every path must
	// appear in exactly one emitted group.
	ix := index(
		record("/d/photo1.jpg", 100),
		record("/d/photo2.jpg", 100),
		record("/d/photo3.jpg", 100),
		record("/d/backup1.jpg", 100),
		record("/d/backup2.jpg", 100),
	)

	groups := group(t, ix, Options{Threshold: 0.8}, nil)
	counts := make(map[string]int)
	for _, g := range groups {
		for _, p := range g {
			counts[p]++
		}
	}
	for p, n := range counts {
		if n > 1 {
			t.Errorf("%s appears in %d groups", p, n)
		}
	}
}

func TestGroupSingletonNotEmitted(t *testing.T) {
	ix := index(record("/d/lonely.txt", 100))
	if groups := group(t, ix, Options{Threshold: 0.5}, nil); len(groups) != 0 {
		t.Errorf("singleton group emitted: %v", groups)
	}
}

func TestGroupAnchorIsSmallestPath(t *testing.T) {
	ix := index(
		record("/d/b-report.txt", 100),
		record("/d/a-report.txt", 100),
	)
	groups := group(t, ix, Options{Threshold: 0.8}, nil)
	if len(groups) != 1 || groups["group_1"][0] != "/d/a-report.txt" {
		t.Errorf("anchor should be the first record in sort order, got %v", groups)
	}
}

func TestHashCheckConfirmsIdenticalContent(t *testing.T) {
	ix := index(
		record("/d/report.txt", 100),
		record("/d/report.md", 100),
	)
	fh := &fakeHasher{hashes: map[string]string{
		"/d/report.txt": "aaaaaaaaaaaaaaaa",
		"/d/report.md":  "aaaaaaaaaaaaaaaa",
	}}

	groups := group(t, ix, Options{Threshold: 1.0, HashCheck: true}, fh)
	if len(groups) != 1 || len(groups["group_1"]) != 2 {
		t.Fatalf("identical content should confirm, got %v", groups)
	}
	if ix["/d/report.txt"].Hash != "aaaaaaaaaaaaaaaa" {
		t.Error("confirmed hash not recorded on the index entry")
	}
}

func TestHashCheckRejectsDifferentContent(t *testing.T) {
	// Same normalized name, same size, different bytes: never a confirmed
	// duplicate group.
	ix := index(
		record("/d/report.txt", 100),
		record("/d/report.md", 100),
	)
	fh := &fakeHasher{hashes: map[string]string{
		"/d/report.txt": "aaaaaaaaaaaaaaaa",
		"/d/report.md":  "bbbbbbbbbbbbbbbb",
	}}

	if groups := group(t, ix, Options{Threshold: 1.0, HashCheck: true}, fh); len(groups) != 0 {
		t.Errorf("differing content confirmed as duplicates: %v", groups)
	}
}

func TestHashCheckDropsUnreadableMember(t *testing.T) {
	ix := index(
		record("/d/report.txt", 100),
		record("/d/report.md", 100),
		record("/d/report.pdf", 100),
	)
	fh := &fakeHasher{hashes: map[string]string{
		"/d/report.txt": "aaaaaaaaaaaaaaaa",
		"/d/report.pdf": "aaaaaaaaaaaaaaaa",
		// report.md is unreadable
	}}

	errCh := make(chan error, 1)
	groups, err := New(ix, Options{Threshold: 1.0, HashCheck: true}, fh, false, errCh).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(groups) != 1 || len(groups["group_1"]) != 2 {
		t.Fatalf("readable members should still confirm, got %v", groups)
	}
	for _, p := range groups["group_1"] {
		if p == "/d/report.md" {
			t.Error("unreadable member kept in confirmed group")
		}
	}
	select {
	case <-errCh:
	default:
		t.Error("unreadable member should report a non-fatal error")
	}
}

func TestGroupCancellation(t *testing.T) {
	ix := index(
		record("/d/report.txt", 100),
		record("/d/report.md", 100),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(ix, Options{Threshold: 0.8}, nil, false, nil).Run(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
