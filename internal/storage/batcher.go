// Package storage contains storage-agnostic contracts and utilities: the
// Repository registry used by the publish step, backend DDL bootstrappers,
// and the Batcher that groups rows into bulk inserts.
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"dividapgfn/internal/metrics"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to 'columns' order) and return the number of rows
// inserted. The rows slice is reused after the call returns.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("storage: batcher closed")

// Batcher buffers rows and hands them to a CopyFn every Size rows. Close
// flushes whatever is left and must run on every exit path, so callers defer
// it right after construction. A Batcher is not safe for concurrent use.
type Batcher struct {
	columns []string
	size    int
	copyFn  CopyFn
	job     string

	buf     [][]any
	total   int64
	flushes int64
	err     error
	closed  bool

	start       time.Time
	lastFlushTS time.Time
}

// NewBatcher returns a Batcher flushing every size rows through copyFn. job
// labels the batch metrics.
func NewBatcher(job string, columns []string, size int, copyFn CopyFn) (*Batcher, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return nil, fmt.Errorf("copyFn must not be nil")
	}
	now := time.Now()
	return &Batcher{
		columns:     columns,
		size:        size,
		copyFn:      copyFn,
		job:         job,
		buf:         make([][]any, 0, size),
		start:       now,
		lastFlushTS: now,
	}, nil
}

// Add buffers row. A full buffer is flushed before row is added, so the
// last batch always goes out on Close.
func (b *Batcher) Add(ctx context.Context, row []any) error {
	if b.closed {
		return ErrClosed
	}
	if b.err != nil {
		return b.err
	}
	if len(row) != len(b.columns) {
		return fmt.Errorf("storage: row has %d values, want %d", len(row), len(b.columns))
	}
	if len(b.buf) >= b.size {
		if err := b.Flush(ctx); err != nil {
			return err
		}
	}
	b.buf = append(b.buf, row)
	return nil
}

// Flush hands the buffered rows to the CopyFn. An empty buffer is a no-op.
// After a failed flush every later call returns the same error.
func (b *Batcher) Flush(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if len(b.buf) == 0 {
		return nil
	}
	n, err := b.copyFn(ctx, b.columns, b.buf)
	b.total += n
	pending := len(b.buf)
	b.buf = b.buf[:0]

	if err != nil {
		log.Printf("loader: COPY failed rows=%d total=%d err=%v", pending, b.total, err)
		b.err = err
		return err
	}

	b.flushes++
	metrics.RecordBatches(b.job, 1)

	now := time.Now()
	sinceLast := now.Sub(b.lastFlushTS)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(n) / sinceLast.Seconds()
	}
	log.Printf(
		"batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s",
		b.flushes,
		rps,
		n,
		b.total,
		now.Sub(b.start).Truncate(time.Millisecond),
		sinceLast.Truncate(time.Millisecond),
	)
	b.lastFlushTS = now
	return nil
}

// Close flushes the remaining rows. It is idempotent: only the first call
// flushes, later calls return the first call's result.
func (b *Batcher) Close(ctx context.Context) error {
	if b.closed {
		return b.err
	}
	b.closed = true
	return b.Flush(ctx)
}

// Total is the number of rows reported inserted so far.
func (b *Batcher) Total() int64 { return b.total }

// Flushes is the number of successful flushes so far.
func (b *Batcher) Flushes() int64 { return b.flushes }
