// Package engine owns the duplicate detection session state.
//
// An Engine holds the file index, the content hash cache and their backing
// stores - there are no ambient globals. Every mutating operation (scan,
// group, delete) persists its result before returning, so the on-disk
// caches always reflect the last completed checkpoint, including after a
// cooperative cancellation. All operations run on the calling goroutine.
package engine

import (
	"context"
	"errors"
	"io"

	"github.com/dupescout/dupescout/internal/deleter"
	"github.com/dupescout/dupescout/internal/grouper"
	"github.com/dupescout/dupescout/internal/hashcache"
	"github.com/dupescout/dupescout/internal/linker"
	"github.com/dupescout/dupescout/internal/scanner"
	"github.com/dupescout/dupescout/internal/store"
	"github.com/dupescout/dupescout/internal/types"
)

// Config locates the persisted caches and wires ambient reporting.
type Config struct {
	IndexCache   string // path to the persisted file index
	GroupsCache  string // path to the persisted duplicate group cache
	HashCache    string // path to the hash cache database; "" disables persistence
	ShowProgress bool
	ErrCh        chan<- error // non-fatal errors and load warnings
}

// Engine is a duplicate detection session.
type Engine struct {
	cfg    Config
	store  *store.Store
	hashes *hashcache.Cache

	index     types.Index
	groups    types.Groups
	groupOpts grouper.Options // last grouping options, reused after deletion
}

// Open initializes a session from the persisted caches. Missing or corrupt
// caches load as empty state with a warning on the error channel.
func Open(cfg Config) (*Engine, error) {
	e := &Engine{
		cfg:       cfg,
		store:     store.New(cfg.IndexCache, cfg.GroupsCache),
		groupOpts: grouper.Options{Threshold: grouper.DefaultThreshold},
	}

	var warn error
	if e.index, warn = e.store.LoadIndex(); warn != nil {
		e.warn(warn)
	}
	if e.groups, warn = e.store.LoadGroups(); warn != nil {
		e.warn(warn)
	}
	if e.hashes, warn = hashcache.Open(cfg.HashCache); warn != nil {
		e.warn(warn)
	}
	return e, nil
}

// Close releases the hash cache database.
func (e *Engine) Close() error {
	return e.hashes.Close()
}

// Index returns the current file index.
func (e *Engine) Index() types.Index { return e.index }

// Groups returns the last computed duplicate groups.
func (e *Engine) Groups() types.Groups { return e.groups }

// Scan rebuilds the file index from the given roots and persists it.
// Records of unchanged files are carried over from the previous index. On
// cancellation the records accumulated up to the last checkpoint are kept
// and persisted, and the context error is returned.
func (e *Engine) Scan(ctx context.Context, roots []string, filter scanner.Filter) error {
	index, err := scanner.New(roots, filter, e.index, e.cfg.ShowProgress, e.cfg.ErrCh).Run(ctx)
	if index != nil {
		e.index = index
	}
	return errors.Join(err, e.store.SaveIndex(e.index))
}

// Group partitions the index into duplicate groups and persists them as
// the new group cache. Hash confirmation, when enabled in opts, computes
// hashes lazily through the session's hash cache.
func (e *Engine) Group(ctx context.Context, opts grouper.Options) (types.Groups, error) {
	e.groupOpts = opts
	groups, err := grouper.New(e.index, opts, e.hashes, e.cfg.ShowProgress, e.cfg.ErrCh).Run(ctx)
	if err != nil {
		return groups, err
	}
	e.groups = groups

	// Hash confirmation records content hashes on the index entries.
	saveErr := e.store.SaveGroups(groups)
	if opts.HashCheck {
		saveErr = errors.Join(saveErr, e.store.SaveIndex(e.index))
	}
	return groups, saveErr
}

// Export regroups with the given options and writes the result to path.
// The live group cache is pruned and persisted by exactly the same logic,
// so the exported file and the cache never diverge.
func (e *Engine) Export(ctx context.Context, path string, opts grouper.Options) error {
	groups, err := e.Group(ctx, opts)
	if err != nil {
		return err
	}
	return store.Export(path, groups)
}

// DeleteOptions configures Delete.
type DeleteOptions struct {
	Interactive bool
	LinkMode    bool
	Links       linker.Service // nil selects the default symlink service
	Input       io.Reader      // interactive answers
	Output      io.Writer      // interactive display
}

// Delete removes redundant members of the current duplicate groups and
// returns the deleted paths. Deleted paths are purged from the index and
// the hash cache, both are persisted, and the groups are recomputed from
// the post-deletion index so the group cache never references a deleted
// path - even after an early quit or cancellation.
func (e *Engine) Delete(ctx context.Context, opts DeleteOptions) ([]string, error) {
	links := opts.Links
	if links == nil {
		links = linker.Symlink{}
	}

	d := deleter.New(e.groups, deleter.Options{
		Interactive:  opts.Interactive,
		LinkMode:     opts.LinkMode,
		ShowProgress: e.cfg.ShowProgress,
	}, links, opts.Input, opts.Output, e.cfg.ErrCh)

	deleted := d.Run(ctx)
	for _, path := range deleted {
		delete(e.index, path)
		e.hashes.Invalidate(path)
	}

	err := e.store.SaveIndex(e.index)

	// Consistency pass runs even when ctx is already cancelled: the group
	// cache must not keep pointing at deleted paths.
	groups, regroupErr := grouper.New(e.index, e.groupOpts, e.hashes, false, e.cfg.ErrCh).Run(context.Background())
	if regroupErr == nil {
		e.groups = groups
		err = errors.Join(err, e.store.SaveGroups(groups))
	}

	return deleted, err
}

// warn reports a non-fatal problem through the error channel, if any.
func (e *Engine) warn(err error) {
	if e.cfg.ErrCh != nil {
		e.cfg.ErrCh <- err
	}
}
