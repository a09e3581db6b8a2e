// Package deleter removes redundant members of duplicate groups.
//
// # Overview
//
// The deleter is the final stage of the pipeline. For each group it decides
// a keep-set (interactively or "first member" in automatic mode), clears
// read-only attributes, and removes every member outside the keep-set with
// bounded retries on transient permission failures. Optionally a link
// artifact pointing to the kept file is left at each deleted path's former
// location.
//
// # Failure model
//
// Exactly one outcome per path: success lands the path in the returned
// list, failure is reported through the error channel and the path stays
// on disk. Neither outcome stops processing of the remaining paths.
// Cancellation is honored between groups, never mid-group.
package deleter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/dupescout/dupescout/internal/linker"
	"github.com/dupescout/dupescout/internal/progress"
	"github.com/dupescout/dupescout/internal/types"
)

const (
	// maxAttempts bounds removal retries on transient permission failures.
	maxAttempts = 3
	// retryDelay is the pause between removal attempts.
	retryDelay = 500 * time.Millisecond
)

// Options configures a deletion run.
type Options struct {
	Interactive  bool // prompt per group; otherwise keep first member only
	LinkMode     bool // leave a link artifact at each deleted path
	ShowProgress bool
}

// stats tracks deletion progress.
type stats struct {
	deletedFiles int
	failedFiles  int
	savedBytes   int64
	totalGroups  int
	doneGroups   int
	startTime    time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Deleted %d files (%s) in %d/%d groups, %d failures in %.1fs",
		s.deletedFiles, humanize.IBytes(uint64(s.savedBytes)),
		s.doneGroups, s.totalGroups, s.failedFiles,
		time.Since(s.startTime).Seconds())
}

// Deleter removes duplicate files group by group.
//
// The deleter is designed for single-use: create with New(), call Run() once.
type Deleter struct {
	// Config (immutable, set by New)
	groups types.Groups
	opts   Options
	links  linker.Service // used only when opts.LinkMode is set
	input  io.Reader      // interactive answers
	out    io.Writer      // interactive display
	errCh  chan<- error   // per-path failures and warnings

	// Runtime (initialized in Run)
	reader *bufio.Reader
	stats  *stats
	bar    *progress.Spinner
}

// New creates a Deleter. links may be nil when opts.LinkMode is false;
// input and out may be nil when opts.Interactive is false.
func New(groups types.Groups, opts Options, links linker.Service, input io.Reader, out io.Writer, errCh chan<- error) *Deleter {
	return &Deleter{
		groups: groups,
		opts:   opts,
		links:  links,
		input:  input,
		out:    out,
		errCh:  errCh,
	}
}

// Run processes all groups in id order and returns the deleted paths.
// A quit answer or a cancelled context stops before the next group;
// already-deleted files stay deleted.
func (d *Deleter) Run(ctx context.Context) []string {
	d.stats = &stats{totalGroups: len(d.groups), startTime: time.Now()}
	// The spinner would collide with interactive prompts.
	d.bar = progress.New(d.opts.ShowProgress && !d.opts.Interactive)
	d.bar.Describe(d.stats)
	if d.input != nil {
		d.reader = bufio.NewReader(d.input)
	}

	var deleted []string
	for _, id := range d.groups.IDs() {
		if ctx.Err() != nil {
			break
		}
		group := d.groups[id]
		if len(group) < 2 {
			continue
		}

		keep, quit := d.keepSet(group)
		if quit {
			break
		}
		deleted = append(deleted, d.deleteGroup(group, keep)...)
		d.stats.doneGroups++
		d.bar.Describe(d.stats)
	}

	d.bar.Finish(d.stats)
	return deleted
}

// keepSet decides which member indices of a group survive. In automatic
// mode this is always {0}. An empty set with quit=false means the whole
// group is kept (skip).
func (d *Deleter) keepSet(group types.DuplicateGroup) (keep map[int]bool, quit bool) {
	if !d.opts.Interactive {
		return map[int]bool{0: true}, false
	}
	return d.prompt(group)
}

// prompt displays a group and reads one of: y (keep first), n (keep all),
// comma-separated 1-based indices to keep, or q (stop all remaining
// groups). Anything else falls back to keeping the first member, with a
// warning, rather than failing the run. A read failure on input counts as
// a quit.
func (d *Deleter) prompt(group types.DuplicateGroup) (map[int]bool, bool) {
	fmt.Fprintf(d.out, "\n%s\n", color.New(color.Bold).Sprintf("Duplicate group (%d files):", len(group)))
	for i, path := range group {
		fmt.Fprintf(d.out, "  [%d] %s\n", i+1, path)
	}
	fmt.Fprintf(d.out, "%s ", color.CyanString("[y] keep first / [n] keep all / 1,2,.. indices to keep / [q] quit:"))

	line, err := d.reader.ReadString('\n')
	if err != nil && line == "" {
		return nil, true
	}
	choice := strings.ToLower(strings.TrimSpace(line))

	switch choice {
	case "q":
		return nil, true
	case "y":
		return map[int]bool{0: true}, false
	case "n":
		return nil, false // keep everything, group skipped
	}

	if keep := parseIndices(choice, len(group)); keep != nil {
		return keep, false
	}

	fmt.Fprintln(d.out, color.YellowString("invalid selection, keeping first file only"))
	return map[int]bool{0: true}, false
}

// parseIndices parses a comma-separated list of 1-based indices. Returns
// nil when the input is not a usable selection (so the caller can fall back
// to the safe default).
func parseIndices(s string, groupLen int) map[int]bool {
	keep := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		if n >= 1 && n <= groupLen {
			keep[n-1] = true
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return keep
}

// deleteGroup removes every member outside the keep-set and returns the
// paths actually deleted.
func (d *Deleter) deleteGroup(group types.DuplicateGroup, keep map[int]bool) []string {
	if len(keep) == 0 {
		return nil // keep all
	}

	// First kept member is the link target.
	kept := ""
	for i, path := range group {
		if keep[i] {
			kept = path
			break
		}
	}

	var deleted []string
	for i, path := range group {
		if keep[i] {
			continue
		}

		if d.opts.LinkMode && kept != "" {
			d.preserveLink(kept, path)
		}

		size := int64(0)
		if info, err := os.Lstat(path); err == nil {
			size = info.Size()
		}

		if err := removeWithRetry(path); err != nil {
			d.stats.failedFiles++
			d.sendError(fmt.Errorf("delete %s: %w", path, err))
			continue
		}

		deleted = append(deleted, path)
		d.stats.deletedFiles++
		d.stats.savedBytes += size
		d.bar.Describe(d.stats)
	}
	return deleted
}

// preserveLink asks the link service for an artifact pointing from the
// soon-deleted path's location to the kept file. Best-effort: a failure is
// reported but never blocks the deletion.
func (d *Deleter) preserveLink(kept, path string) {
	if _, err := os.Stat(kept); err != nil {
		return
	}
	if err := d.links.Link(kept, path+linker.Suffix); err != nil {
		d.sendError(fmt.Errorf("link for %s: %w", path, err))
	}
}

// removeWithRetry clears read-only attributes and removes path, retrying a
// bounded number of times on permission failures.
func removeWithRetry(path string) error {
	if _, err := os.Lstat(path); err == nil {
		_ = os.Chmod(path, 0o777)
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = os.Remove(path)
		if err == nil || !errors.Is(err, fs.ErrPermission) {
			return err
		}
		if attempt < maxAttempts-1 {
			time.Sleep(retryDelay)
		}
	}
	return err
}

// sendError sends an error to the errors channel if one is configured.
func (d *Deleter) sendError(err error) {
	if d.errCh != nil {
		d.errCh <- err
	}
}
