// Package ingest consolidates the PGFN extracts of a working directory into
// one SQLite store.
//
// The load runs in a single transaction: every file of every category is
// parsed, batched into the store and recorded in the manifest, and only then
// committed. Any failure rolls back and removes the store file, so a store
// on disk is always complete.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dividapgfn/internal/config"
	"dividapgfn/internal/datasource/file"
	"dividapgfn/internal/metrics"
	"dividapgfn/internal/record"
	"dividapgfn/internal/storage"
	"dividapgfn/internal/storage/sqlite"
)

// Layout under the working directory.
const (
	InputDir  = "entrada"
	StoreFile = "pgfn.sqlite"
)

// StorePath returns the consolidated store path for dir.
func StorePath(dir string) string { return filepath.Join(dir, InputDir, StoreFile) }

// Options configures Build.
type Options struct {
	Dir       string
	BatchSize int
	Workers   int    // files parsed ahead of the writer
	Job       string // metrics label
	Verbose   bool
}

// Result summarizes a successful Build.
type Result struct {
	RunID     string
	StorePath string
	Files     []sqlite.FileEntry
	Records   int64
	Elapsed   time.Duration
}

// Build loads every category directory of opts.Dir into a fresh store.
func Build(ctx context.Context, opts Options) (res Result, err error) {
	start := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultWorkers
	}
	if opts.Job == "" {
		opts.Job = config.DefaultJob
	}
	defer func() { metrics.RecordStep(opts.Job, "base", err, time.Since(start)) }()

	var files []*pendingFile
	for _, c := range record.Categories {
		dir := filepath.Join(opts.Dir, InputDir, c.Dir())
		if err := config.RequireDir(dir, c.String()+" directory"); err != nil {
			return Result{}, err
		}
		paths, err := file.ListRegular(dir)
		if err != nil {
			return Result{}, fmt.Errorf("ingest: %w", err)
		}
		for _, p := range paths {
			files = append(files, newPending(c, p))
		}
	}

	path := StorePath(opts.Dir)
	store, err := sqlite.Create(ctx, path)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err != nil {
			if derr := store.Discard(); derr != nil {
				log.Printf("ingest: discard %s: %v", path, derr)
			}
		}
	}()

	tx, err := store.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	batcher, err := storage.NewBatcher(opts.Job, record.Columns, opts.BatchSize, tx.CopyFrom)
	if err != nil {
		return Result{}, err
	}
	defer batcher.Close(ctx)

	res = Result{RunID: uuid.NewString(), StorePath: path}
	if res.Files, err = load(ctx, tx, batcher, files, opts, res.RunID); err != nil {
		return Result{}, err
	}
	if err := batcher.Close(ctx); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	metrics.RecordRow(opts.Job, metrics.KindLoaded, batcher.Total())

	if err := store.BuildIndexes(ctx); err != nil {
		return Result{}, err
	}
	if err := store.Close(); err != nil {
		return Result{}, err
	}

	res.Records = batcher.Total()
	res.Elapsed = time.Since(start)
	log.Printf("ingest: done run_id=%s files=%d records=%d elapsed=%s",
		res.RunID, len(res.Files), res.Records, res.Elapsed.Truncate(time.Millisecond))
	return res, nil
}

// load writes files to tx in order and records each one in the manifest.
// With one worker the files are parsed inline; more workers parse ahead of
// the writer.
func load(ctx context.Context, tx *sqlite.Tx, b *storage.Batcher, files []*pendingFile, opts Options, runID string) ([]sqlite.FileEntry, error) {
	add := func(row []any) error { return b.Add(ctx, row) }
	m := manifest{tx: tx, opts: opts, runID: runID}
	if opts.Workers <= 1 {
		for _, f := range files {
			if err := f.parse(ctx, add); err != nil {
				return nil, err
			}
			if err := m.add(ctx, f.entry); err != nil {
				return nil, err
			}
		}
		return m.entries, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wait := prefetch(ctx, files, opts.Workers)
	err := drain(ctx, b, files, &m)
	cancel()
	if werr := wait(); werr != nil && (err == nil || errors.Is(err, errAborted)) {
		return nil, werr
	}
	if err != nil {
		return nil, err
	}
	return m.entries, nil
}

func drain(ctx context.Context, b *storage.Batcher, files []*pendingFile, m *manifest) error {
	for _, f := range files {
		for row := range f.rows {
			if err := b.Add(ctx, row); err != nil {
				return fmt.Errorf("ingest: %s: %w", f.path, err)
			}
		}
		if f.err != nil {
			return errAborted
		}
		if err := m.add(ctx, f.entry); err != nil {
			return err
		}
	}
	return nil
}

type manifest struct {
	tx      *sqlite.Tx
	opts    Options
	runID   string
	entries []sqlite.FileEntry
}

func (m *manifest) add(ctx context.Context, entry sqlite.FileEntry) error {
	entry.RunID = m.runID
	if err := m.tx.AddFile(ctx, entry); err != nil {
		return err
	}
	metrics.RecordRow(m.opts.Job, metrics.KindParsed, entry.Lines)
	metrics.RecordFile(m.opts.Job, entry.Category, entry.Bytes)
	if m.opts.Verbose {
		log.Printf("ingest: category=%s file=%s lines=%d bytes=%d", entry.Category, entry.Name, entry.Lines, entry.Bytes)
	}
	m.entries = append(m.entries, entry)
	return nil
}
