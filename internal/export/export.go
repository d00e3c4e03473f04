// Package export writes the filtered PGFN debts and their registry data as
// delimited text files (and optionally XLSX workbooks).
//
// Every file of a run is written or none is: on the first failure all files
// created so far are removed.
package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"dividapgfn/internal/metrics"
)

// OutputDir is the directory under the working directory receiving exports.
const OutputDir = "saida"

// Options configures Run.
type Options struct {
	Dir       string // output directory, created if absent
	Separator rune
	Format    NumberFormat
	XLSX      bool
	Job       string
}

// Result lists the files written and the row count per projection.
type Result struct {
	Files []string
	Rows  map[string]int64
}

// Run writes every projection read through q.
func Run(ctx context.Context, q sqlx.QueryerContext, projections []Projection, opts Options) (res Result, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(opts.Job, "export", err, time.Since(start)) }()

	if opts.Separator == 0 {
		opts.Separator = ';'
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("export: mkdir %s: %w", opts.Dir, err)
	}

	res = Result{Rows: make(map[string]int64, len(projections))}
	defer func() {
		if err == nil {
			return
		}
		for _, p := range res.Files {
			if rerr := os.Remove(p); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				log.Printf("export: cleanup %s: %v", p, rerr)
			}
		}
		res = Result{}
	}()

	for _, p := range projections {
		n, files, err := writeProjection(ctx, q, p, opts)
		res.Files = append(res.Files, files...)
		if err != nil {
			return res, err
		}
		res.Rows[p.Name] = n
		metrics.RecordRow(opts.Job, metrics.KindExported, n)
		log.Printf("export: %s rows=%d", p.Name, n)
	}
	return res, nil
}

// writeProjection returns the files it created even on failure so the caller
// can remove them.
func writeProjection(ctx context.Context, q sqlx.QueryerContext, p Projection, opts Options) (n int64, files []string, err error) {
	csvPath := filepath.Join(opts.Dir, p.Name+".csv")
	cw, err := NewCSVWriter(csvPath, opts.Separator, opts.Format)
	if err != nil {
		return 0, nil, err
	}
	files = append(files, csvPath)
	w := multiWriter{cw}

	if opts.XLSX {
		xlsxPath := filepath.Join(opts.Dir, p.Name+".xlsx")
		xw, err := NewXLSXWriter(xlsxPath, p.Name)
		if err != nil {
			_ = cw.Close()
			return 0, files, err
		}
		files = append(files, xlsxPath)
		w = append(w, xw)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("export: close %s: %w", p.Name, cerr)
		}
	}()

	rows, err := q.QueryxContext(ctx, p.SQL)
	if err != nil {
		return 0, files, fmt.Errorf("export: query %s: %w", p.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, files, fmt.Errorf("export: columns %s: %w", p.Name, err)
	}
	if len(cols) != len(p.Columns) {
		return 0, files, fmt.Errorf("export: %s: query yields %d columns, want %d", p.Name, len(cols), len(p.Columns))
	}
	if err := w.WriteHeader(p.Columns); err != nil {
		return 0, files, fmt.Errorf("export: %s header: %w", p.Name, err)
	}

	vals := make([]Value, len(p.Columns))
	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return n, files, fmt.Errorf("export: scan %s: %w", p.Name, err)
		}
		for i, c := range p.Columns {
			if vals[i], err = decode(c.Kind, raw[i]); err != nil {
				return n, files, fmt.Errorf("export: %s row %d column %s: %w", p.Name, n+1, c.Name, err)
			}
		}
		if err := w.WriteRow(vals); err != nil {
			return n, files, fmt.Errorf("export: write %s: %w", p.Name, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, files, fmt.Errorf("export: rows %s: %w", p.Name, err)
	}
	return n, files, nil
}
