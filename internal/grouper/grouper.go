// Package grouper partitions the file index into duplicate groups.
//
// # Overview
//
// The grouper is the candidate-search stage of the pipeline. Records are
// sorted by size; for each unvisited anchor a binary search finds the
// size-tolerance window, and fuzzy name matching inside that window decides
// group membership. This replaces the naive O(n²) all-pairs comparison with
// O(n log n) window lookups.
//
// # Tolerance
//
// The window is symmetric around the anchor's size. The default tolerance
// is zero - only exactly-equal sizes are candidates - since duplicate files
// are expected to be byte-identical. Tolerance is an explicit parameter
// rather than an implicit policy.
//
// # Hash confirmation
//
// When enabled, every emitted group must agree on on-disk size and content
// hash. A member that mismatches or cannot be read is dropped from the
// group and unmarked as visited, so it may surface again in a later
// grouping run. Groups reduced below two members are discarded.
package grouper

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dupescout/dupescout/internal/progress"
	"github.com/dupescout/dupescout/internal/similarity"
	"github.com/dupescout/dupescout/internal/types"
)

// DefaultThreshold is the similarity ratio required for two names to be
// considered the same logical file.
const DefaultThreshold = 0.9

// Options configures a grouping run.
type Options struct {
	Threshold float64 // similarity ratio in [0,1] required for membership
	Tolerance int64   // size window half-width in bytes; 0 = exact size only
	HashCheck bool    // require identical content hashes per group
}

// Hasher computes memoized content hashes. Satisfied by hashcache.Cache.
type Hasher interface {
	Hash(path string, size int64) (string, error)
}

// stats tracks grouping progress.
type stats struct {
	groups    int
	members   int
	dupeBytes int64
	startTime time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Found %d duplicate groups (%d files, %s) in %.1fs",
		s.groups, s.members, humanize.IBytes(uint64(s.dupeBytes)),
		time.Since(s.startTime).Seconds())
}

// Grouper finds duplicate groups in a file index.
//
// The grouper is designed for single-use: create with New(), call Run() once.
type Grouper struct {
	// Config (immutable, set by New)
	index        types.Index
	opts         Options
	hasher       Hasher // required when opts.HashCheck is set
	showProgress bool
	errCh        chan<- error // non-fatal errors (unreadable members, etc.)

	// Runtime (initialized in Run)
	stats *stats
	bar   *progress.Spinner
}

// New creates a Grouper. hasher may be nil when opts.HashCheck is false.
func New(index types.Index, opts Options, hasher Hasher, showProgress bool, errCh chan<- error) *Grouper {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	return &Grouper{
		index:        index,
		opts:         opts,
		hasher:       hasher,
		showProgress: showProgress,
		errCh:        errCh,
	}
}

// Run partitions the index into duplicate groups.
//
// Visitation follows the ascending-size sort, so the first record at a
// given size becomes each group's anchor. No path appears in two emitted
// groups. Cancellation is honored between anchors.
func (g *Grouper) Run(ctx context.Context) (types.Groups, error) {
	g.stats = &stats{startTime: time.Now()}
	g.bar = progress.New(g.showProgress)
	g.bar.Describe(g.stats)

	sorted := types.NewSorted(g.index.Records(), func(r *types.FileRecord) int64 {
		return r.SortedSize
	})

	groups := make(types.Groups)
	seen := make(map[string]bool)

	for _, anchor := range sorted.Items() {
		if err := ctx.Err(); err != nil {
			return groups, err
		}
		if seen[anchor.Path] {
			continue
		}

		group := g.collect(sorted, anchor, seen)
		if len(group) < 2 {
			continue
		}
		seen[anchor.Path] = true

		if g.opts.HashCheck {
			group = g.confirm(group, seen)
			if len(group) < 2 {
				continue
			}
		}

		groups[types.GroupID(len(groups)+1)] = group
		g.stats.groups++
		g.stats.members += len(group)
		for _, p := range group {
			g.stats.dupeBytes += g.index[p].Size
		}
		g.bar.Describe(g.stats)
	}

	g.bar.Finish(g.stats)
	return groups, nil
}

// collect gathers the anchor's group from its size window, marking captured
// members as seen so they are never re-grouped under a different anchor.
func (g *Grouper) collect(sorted types.Sorted[*types.FileRecord, int64], anchor *types.FileRecord, seen map[string]bool) types.DuplicateGroup {
	group := types.DuplicateGroup{anchor.Path}

	lo, hi := sorted.Window(anchor.SortedSize-g.opts.Tolerance, anchor.SortedSize+g.opts.Tolerance)
	for _, other := range sorted.Items()[lo:hi] {
		if other.Path == anchor.Path || seen[other.Path] {
			continue
		}
		if similarity.Ratio(anchor.Name, other.Name) >= g.opts.Threshold {
			group = append(group, other.Path)
			seen[other.Path] = true
		}
	}
	return group
}

// confirm prunes a group down to members with identical on-disk size and
// content hash. The first hashable member's hash is the reference; any
// member that differs or cannot be read is dropped from the group and
// unmarked in seen.
func (g *Grouper) confirm(group types.DuplicateGroup, seen map[string]bool) types.DuplicateGroup {
	refSize := g.index[group[0]].Size
	refHash := ""

	kept := make(types.DuplicateGroup, 0, len(group))
	for _, path := range group {
		rec := g.index[path]
		if rec.Size != refSize {
			delete(seen, path)
			continue
		}
		h, err := g.hasher.Hash(path, rec.Size)
		if err != nil {
			g.sendError(fmt.Errorf("%s: %w", path, err))
			delete(seen, path)
			continue
		}
		rec.Hash = h
		if refHash == "" {
			refHash = h
		} else if h != refHash {
			delete(seen, path)
			continue
		}
		kept = append(kept, path)
	}
	return kept
}

// sendError sends an error to the errors channel if one is configured.
func (g *Grouper) sendError(err error) {
	if g.errCh != nil {
		g.errCh <- err
	}
}
