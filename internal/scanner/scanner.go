// Package scanner builds the file index by walking directory trees.
//
// # Overview
//
// The scanner is the first stage in the duplicate detection pipeline. It
// walks each root exactly once, applies include/exclude filters, and
// produces a fresh index replacing the prior one. A file already present in
// the previous index whose on-disk size is unchanged keeps its old record
// (and with it any cached content hash) - this is the sole reuse-across-runs
// optimization.
//
// # Cancellation
//
// Traversal is sequential and cooperative: the context is checked before
// entering each directory and before processing each file. On cancellation
// the walk stops immediately; records from completed directories remain in
// the returned index, records from the in-flight directory are discarded.
//
// # Why Sequential?
//
// Filesystem metadata reads are fast relative to the hashing and fuzzy
// matching stages, and a single-threaded walk keeps the per-directory
// commit semantics trivial. All index mutations happen on one goroutine.
package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dupescout/dupescout/internal/namenorm"
	"github.com/dupescout/dupescout/internal/progress"
	"github.com/dupescout/dupescout/internal/types"
)

// Filter selects which files enter the index. Include filters are applied
// first (empty slice = include everything), then exclude filters.
type Filter struct {
	IncludeExts     []string // extensions, case-insensitive, leading dot optional
	IncludeKeywords []string // substring match on the normalized base name
	ExcludeExts     []string
	ExcludeKeywords []string
	ExcludeDirs     []string // directories skipped entirely, no descent
}

// compiled is a Filter with all members normalized for matching.
type compiled struct {
	includeExts []string
	includeKws  []string
	excludeExts []string
	excludeKws  []string
	excludeDirs []string // absolute, NFC-normalized
}

func (f Filter) compile() (compiled, error) {
	c := compiled{
		includeExts: normalizeExts(f.IncludeExts),
		includeKws:  normalizeKeywords(f.IncludeKeywords),
		excludeExts: normalizeExts(f.ExcludeExts),
		excludeKws:  normalizeKeywords(f.ExcludeKeywords),
	}
	for _, d := range f.ExcludeDirs {
		abs, err := namenorm.Path(d)
		if err != nil {
			return c, fmt.Errorf("exclude dir %q: %w", d, err)
		}
		c.excludeDirs = append(c.excludeDirs, abs)
	}
	return c, nil
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, strings.ToLower(strings.TrimPrefix(e, ".")))
	}
	return out
}

func normalizeKeywords(kws []string) []string {
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		out = append(out, namenorm.Keyword(kw))
	}
	return out
}

// match reports whether a file with the given normalized base name and
// extension passes the filter.
func (c compiled) match(base, ext string) bool {
	if len(c.includeExts) > 0 && !slices.Contains(c.includeExts, ext) {
		return false
	}
	if len(c.includeKws) > 0 && !containsAny(base, c.includeKws) {
		return false
	}
	if slices.Contains(c.excludeExts, ext) {
		return false
	}
	if containsAny(base, c.excludeKws) {
		return false
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// underAny reports whether path equals or is contained under any of dirs.
func underAny(path string, dirs []string) bool {
	for _, d := range dirs {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// stats tracks scanning progress.
type stats struct {
	scannedFiles int64
	matchedFiles int64
	scannedBytes int64
	matchedBytes int64
	startTime    time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Scanned %d (%s), indexed %d files (%s) in %.1fs",
		s.scannedFiles, humanize.IBytes(uint64(s.scannedBytes)),
		s.matchedFiles, humanize.IBytes(uint64(s.matchedBytes)),
		time.Since(s.startTime).Seconds())
}

// Scanner builds a file index from one or more root directories.
//
// The scanner is designed for single-use: create with New(), call Run() once.
type Scanner struct {
	// Config (immutable, set by New)
	roots        []string
	filter       Filter
	prev         types.Index // previous index, for unchanged-size reuse
	showProgress bool
	errCh        chan<- error // non-fatal errors (permission denied, etc.)

	// Runtime (initialized in Run)
	compiled compiled
	index    types.Index
	stats    *stats
	bar      *progress.Spinner
}

// New creates a Scanner. prev may be nil when no prior index exists.
func New(roots []string, filter Filter, prev types.Index, showProgress bool, errCh chan<- error) *Scanner {
	return &Scanner{
		roots:        roots,
		filter:       filter,
		prev:         prev,
		showProgress: showProgress,
		errCh:        errCh,
	}
}

// Run walks all roots and returns the rebuilt index.
//
// On cancellation Run returns the records accumulated for completed
// directories together with ctx.Err(). Any other per-path failure is
// reported through the error channel and skipped.
func (s *Scanner) Run(ctx context.Context) (types.Index, error) {
	c, err := s.filter.compile()
	if err != nil {
		return nil, err
	}
	s.compiled = c
	s.index = make(types.Index)
	s.stats = &stats{startTime: time.Now()}
	s.bar = progress.New(s.showProgress)
	s.bar.Describe(s.stats)

	for _, root := range s.roots {
		abs, err := namenorm.Path(root)
		if err != nil {
			s.sendError(err)
			continue
		}
		if err := s.walkDirectory(ctx, abs); err != nil {
			return s.index, err
		}
	}

	s.bar.Finish(s.stats)
	return s.index, nil
}

// walkDirectory processes one directory and recurses into subdirectories.
//
// Matched records for the directory's own files are committed to the index
// only after the whole file list is processed, so a cancellation mid-listing
// never leaves a half-indexed directory behind.
func (s *Scanner) walkDirectory(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if underAny(dir, s.compiled.excludeDirs) {
		return nil
	}

	files, subdirs, err := s.listDirectory(dir)
	if err != nil {
		s.sendError(err)
		return nil
	}

	batch := make(map[string]*types.FileRecord)
	for _, entry := range files {
		if err := ctx.Err(); err != nil {
			return err // in-flight directory: batch discarded
		}
		path, rec, err := s.processFile(dir, entry)
		if err != nil {
			s.sendError(err)
			continue
		}
		if rec != nil {
			batch[path] = rec
		}
	}
	for path, rec := range batch {
		s.index[path] = rec
	}
	s.bar.Describe(s.stats)

	for _, sub := range subdirs {
		if err := s.walkDirectory(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// listDirectory reads a single directory, returning file entries and
// subdirectory paths. Batched ReadDir bounds memory on huge directories.
func (s *Scanner) listDirectory(dirPath string) (files []os.DirEntry, subdirs []string, err error) {
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = dir.Close() }()

	const batchSize = 1000
	for {
		entries, err := dir.ReadDir(batchSize)
		if len(entries) == 0 {
			if err != nil && err != io.EOF {
				return files, subdirs, err
			}
			break
		}
		for _, entry := range entries {
			switch {
			case entry.IsDir():
				subdirs = append(subdirs, filepath.Join(dirPath, entry.Name()))
			case entry.Type().IsRegular():
				files = append(files, entry)
			}
		}
	}
	// Directory read order is platform-dependent; sort for determinism.
	slices.SortFunc(files, func(a, b os.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	slices.Sort(subdirs)
	return files, subdirs, nil
}

// processFile filters one file and produces its index record. Returns a nil
// record for files that do not pass the filter. An unchanged file (same
// on-disk size as the previous index) keeps its previous record untouched.
func (s *Scanner) processFile(dir string, entry os.DirEntry) (string, *types.FileRecord, error) {
	info, err := entry.Info()
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", filepath.Join(dir, entry.Name()), err)
	}

	s.stats.scannedFiles++
	s.stats.scannedBytes += info.Size()

	base, ext := namenorm.Split(entry.Name())
	if !s.compiled.match(base, ext) {
		return "", nil, nil
	}

	path, err := namenorm.Path(filepath.Join(dir, entry.Name()))
	if err != nil {
		return "", nil, err
	}

	s.stats.matchedFiles++
	s.stats.matchedBytes += info.Size()

	if old, ok := s.prev[path]; ok && old.Size == info.Size() {
		return path, old, nil
	}

	return path, &types.FileRecord{
		Path:       path,
		Size:       info.Size(),
		SortedSize: info.Size(),
		Name:       base,
	}, nil
}

// sendError sends an error to the errors channel if one is configured.
func (s *Scanner) sendError(err error) {
	if s.errCh != nil {
		s.errCh <- err
	}
}
