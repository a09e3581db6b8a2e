package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dupescout/dupescout/internal/engine"
	"github.com/dupescout/dupescout/internal/grouper"
	"github.com/dupescout/dupescout/internal/scanner"
)

// findOptions holds CLI flags for the find command.
type findOptions struct {
	includeExts     []string
	includeKeywords []string
	excludeExts     []string
	excludeKeywords []string
	excludeDirs     []string
	threshold       float64
	tolerance       int64
	hashCheck       bool
	linkMode        bool
	autoDelete      bool
	yes             bool
	output          string
	indexCache      string
	groupsCache     string
	hashCache       string
	noProgress      bool
}

// newFindCmd creates the find subcommand.
func newFindCmd() *cobra.Command {
	opts := &findOptions{
		threshold:   grouper.DefaultThreshold,
		indexCache:  "file_cache.json",
		groupsCache: "duplicate_cache.json",
		hashCache:   "hash_cache.db",
	}

	cmd := &cobra.Command{
		Use:   "find [directories...]",
		Short: "Scan directories and report duplicate groups",
		Long: `Scans directory trees, groups files whose sizes match and whose names are
similar, and optionally deletes the redundant copies.

Similarity is a normalized edit-distance ratio over the file names with
extensions stripped. Use --hash-check to additionally require byte-identical
content before two files are considered duplicates.

With --delete, the first file of each group is kept and the rest are removed;
without --yes each group is confirmed interactively. --link leaves a symlink
at every deleted location pointing to the kept file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runFind(args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.includeExts, "ext", "e", nil, "Only index files with these extensions")
	cmd.Flags().StringSliceVarP(&opts.includeKeywords, "keyword", "k", nil, "Only index files whose name contains one of these keywords")
	cmd.Flags().StringSliceVar(&opts.excludeExts, "no-ext", nil, "Skip files with these extensions")
	cmd.Flags().StringSliceVar(&opts.excludeKeywords, "no-keyword", nil, "Skip files whose name contains one of these keywords")
	cmd.Flags().StringSliceVar(&opts.excludeDirs, "exclude-dir", nil, "Directories to skip entirely")
	cmd.Flags().Float64VarP(&opts.threshold, "threshold", "t", opts.threshold, "Name similarity threshold (0.0-1.0)")
	cmd.Flags().Int64Var(&opts.tolerance, "tolerance", 0, "Size window half-width in bytes (0 = exact size only)")
	cmd.Flags().BoolVarP(&opts.hashCheck, "hash-check", "c", false, "Require identical content hashes within a group")
	cmd.Flags().BoolVarP(&opts.linkMode, "link", "l", false, "Leave a symlink to the kept file at each deleted path")
	cmd.Flags().BoolVarP(&opts.autoDelete, "delete", "d", false, "Delete redundant duplicates (keeps first file per group)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip interactive confirmation when deleting")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Export duplicate groups to this file")
	cmd.Flags().StringVar(&opts.indexCache, "index-cache", opts.indexCache, "Path to the file index cache")
	cmd.Flags().StringVar(&opts.groupsCache, "groups-cache", opts.groupsCache, "Path to the duplicate group cache")
	cmd.Flags().StringVar(&opts.hashCache, "hash-cache", opts.hashCache, "Path to the hash cache database (empty disables)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")

	return cmd
}

// drainErrors consumes errors from a channel and writes them to stderr.
// Clears the progress line before printing to avoid visual collision.
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kwarning: %v\n", err)
	}
}

// runFind executes the pipeline: scan → group → report → (optional) delete.
func runFind(dirs []string, opts *findOptions) error {
	if err := validateThreshold(opts.threshold); err != nil {
		return err
	}

	// Ctrl+C requests a cooperative stop, observed at the engine's
	// checkpoints rather than killing the process mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errs := make(chan error, 100)
	go drainErrors(errs)
	defer close(errs)

	eng, err := engine.Open(engine.Config{
		IndexCache:   opts.indexCache,
		GroupsCache:  opts.groupsCache,
		HashCache:    opts.hashCache,
		ShowProgress: !opts.noProgress,
		ErrCh:        errs,
	})
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Scan(ctx, dirs, scanner.Filter{
		IncludeExts:     opts.includeExts,
		IncludeKeywords: opts.includeKeywords,
		ExcludeExts:     opts.excludeExts,
		ExcludeKeywords: opts.excludeKeywords,
		ExcludeDirs:     opts.excludeDirs,
	}); err != nil {
		return err
	}

	groupOpts := grouper.Options{
		Threshold: opts.threshold,
		Tolerance: opts.tolerance,
		HashCheck: opts.hashCheck,
	}

	if opts.output != "" {
		if err := eng.Export(ctx, opts.output, groupOpts); err != nil {
			return err
		}
	} else if _, err := eng.Group(ctx, groupOpts); err != nil {
		return err
	}

	printGroups(eng.Groups())

	if opts.autoDelete {
		deleted, err := eng.Delete(ctx, engine.DeleteOptions{
			Interactive: !opts.yes,
			LinkMode:    opts.linkMode,
			Input:       os.Stdin,
			Output:      os.Stdout,
		})
		fmt.Printf("Deleted %d duplicate files\n", len(deleted))
		if err != nil {
			return err
		}
	}

	return ctx.Err()
}
