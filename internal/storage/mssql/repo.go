// Package mssql publishes to Microsoft SQL Server with the go-mssqldb bulk
// copy API. Each CopyFrom call is one bulk insert inside one transaction.
package mssql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/shopspring/decimal"

	"dividapgfn/internal/storage"
	msddl "dividapgfn/internal/storage/mssql/ddl"
)

func init() {
	storage.RegisterBackend("mssql",
		func(ctx context.Context, cfg storage.Config) (storage.Table, func(), error) {
			return NewRepository(ctx, cfg)
		},
		msddl.MapType, msddl.BuildCreateTableSQL)
}

// Repository writes to one SQL Server table.
type Repository struct {
	db    *sqlx.DB
	table string
}

// NewRepository validates the DSN, connects and pings. The returned function
// closes the pool.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("dsn: %w", err)
	}
	db, err := sqlx.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, table: cfg.Table}, func() { _ = db.Close() }, nil
}

// CopyFrom bulk-copies rows into the table.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (n int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(r.table, mssql.BulkOptions{Tablock: true}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	defer stmt.Close()

	vals := make([]any, len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("bulk row %d: %d values for %d columns", i, len(row), len(columns))
		}
		for j, v := range row {
			vals[j] = toCopyVal(v)
		}
		if _, err = stmt.ExecContext(ctx, vals...); err != nil {
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Exec runs sqlText on the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// Truncate empties the table.
func (r *Repository) Truncate(ctx context.Context) error {
	if err := r.Exec(ctx, truncateSQL(r.table)); err != nil {
		return fmt.Errorf("truncate %s: %w", r.table, err)
	}
	return nil
}

func truncateSQL(table string) string {
	return "TRUNCATE TABLE " + msddl.QuoteFQN(table) + ";"
}

// toCopyVal renders decimals as exact strings, which the bulk encoder parses
// into DECIMAL columns.
func toCopyVal(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return v
}
