// Package publish copies the consolidated debt table into an operational
// database through the storage backend registry. Money leaves the store as
// integer centavos and is sent to the backend as an exact decimal.
package publish

import (
	"context"
	"fmt"
	"log"
	"time"

	"dividapgfn/internal/config"
	"dividapgfn/internal/ddl"
	"dividapgfn/internal/metrics"
	"dividapgfn/internal/record"
	"dividapgfn/internal/storage"
	"dividapgfn/internal/storage/sqlite"
)

// Options configures Run.
type Options struct {
	Kind        string
	DSN         string
	Table       string
	BatchSize   int
	CreateTable bool
	Job         string
}

// Fields is record.Fields with the amount as an exact decimal column.
func Fields() []ddl.Field {
	fields := record.Fields()
	for i := range fields {
		if fields[i].Kind == "cents" {
			fields[i].Kind = "money"
		}
	}
	return fields
}

// Run replaces the content of opts.Table with every row of store and returns
// the number of rows copied.
func Run(ctx context.Context, store *sqlite.Store, opts Options) (n int64, err error) {
	start := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.DefaultBatchSize
	}
	defer func() { metrics.RecordStep(opts.Job, "publica", err, time.Since(start)) }()

	repo, err := storage.New(ctx, storage.Config{
		Kind:    opts.Kind,
		DSN:     opts.DSN,
		Table:   opts.Table,
		Columns: record.Columns,
	})
	if err != nil {
		return 0, fmt.Errorf("publish: open %s: %w", opts.Kind, err)
	}
	defer repo.Close()

	if opts.CreateTable {
		if err := storage.EnsureTable(ctx, opts.Kind, repo, opts.Table, Fields()); err != nil {
			return 0, fmt.Errorf("publish: %w", err)
		}
	}

	if err := repo.Truncate(ctx); err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}

	b, err := storage.NewBatcher(opts.Job, record.Columns, opts.BatchSize, repo.CopyFrom)
	if err != nil {
		return 0, err
	}
	defer b.Close(ctx)

	rows, err := store.Rows(ctx)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	amount := amountIndex()
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return b.Total(), fmt.Errorf("publish: scan: %w", err)
		}
		cents, ok := vals[amount].(int64)
		if !ok {
			return b.Total(), fmt.Errorf("publish: %s has type %T, want integer centavos", record.Columns[amount], vals[amount])
		}
		vals[amount] = record.FromCents(cents)
		if err := b.Add(ctx, vals); err != nil {
			return b.Total(), fmt.Errorf("publish: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return b.Total(), fmt.Errorf("publish: rows: %w", err)
	}
	if err := b.Close(ctx); err != nil {
		return b.Total(), fmt.Errorf("publish: %w", err)
	}

	metrics.RecordRow(opts.Job, metrics.KindPublished, b.Total())
	log.Printf("publish: kind=%s table=%s rows=%d elapsed=%s",
		opts.Kind, opts.Table, b.Total(), time.Since(start).Truncate(time.Millisecond))
	return b.Total(), nil
}

func amountIndex() int {
	for i, c := range record.Columns {
		if c == "valor_consolidado" {
			return i
		}
	}
	panic("publish: record.Columns lacks valor_consolidado")
}
