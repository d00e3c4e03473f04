// Package sqlite holds the SQLite side of the pipeline: the consolidated
// store written by base, and a publish target. Both use modernc.org/sqlite
// through sqlx, so no cgo is needed.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	gddl "dividapgfn/internal/ddl"
	"dividapgfn/internal/storage"
	sqliteddl "dividapgfn/internal/storage/sqlite/ddl"
)

func init() {
	storage.RegisterBackend("sqlite",
		func(ctx context.Context, cfg storage.Config) (storage.Table, func(), error) {
			return NewRepository(ctx, cfg)
		},
		sqliteddl.MapType, sqliteddl.BuildCreateTableSQL)
}

// Repository is a SQLite publish target. SQLite has no bulk-load API; each
// CopyFrom call runs one transaction with a prepared INSERT.
type Repository struct {
	db    *sqlx.DB
	table string
}

// NewRepository opens cfg.DSN and returns a Repository plus its cleanup.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
	db, err := Open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{db: db, table: cfg.Table}, func() { _ = db.Close() }, nil
}

// CopyFrom inserts rows into the configured table inside one transaction.
// Every row must have len(columns) values.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	n, err := insertRows(ctx, tx, r.table, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// Exec executes a raw statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, q string) error {
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// Truncate deletes every row. SQLite has no TRUNCATE statement.
func (r *Repository) Truncate(ctx context.Context) error {
	return r.Exec(ctx, "DELETE FROM "+gddl.QuoteFQN(r.table, sqliteddl.QuoteIdent))
}

func insertRows(ctx context.Context, tx *sqlx.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PreparexContext(ctx, insertSQL(table, columns))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()
	return execRows(ctx, stmt, len(columns), rows)
}

func execRows(ctx context.Context, stmt *sqlx.Stmt, width int, rows [][]any) (int64, error) {
	var inserted int64
	for _, row := range rows {
		if len(row) != width {
			return inserted, fmt.Errorf("sqlite: row length %d != columns length %d", len(row), width)
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return inserted, fmt.Errorf("sqlite: insert row %d: %w", inserted, err)
		}
		inserted++
	}
	return inserted, nil
}

// insertSQL builds INSERT INTO "t" ("c1", ...) VALUES (?, ...).
func insertSQL(table string, columns []string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		gddl.QuoteFQN(table, sqliteddl.QuoteIdent),
		quotedList(columns),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)
}

func quotedList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sqliteddl.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
