// Package postgres publishes to Postgres with pgx v5. Rows go straight into
// the target table through the COPY protocol.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dividapgfn/internal/storage"
	pgddl "dividapgfn/internal/storage/postgres/ddl"
)

func init() {
	storage.RegisterBackend("postgres",
		func(ctx context.Context, cfg storage.Config) (storage.Table, func(), error) {
			return NewRepository(ctx, cfg)
		},
		pgddl.MapType, pgddl.BuildCreateTableSQL)
}

// Repository writes to one Postgres table, e.g. "public.pgfn_devedores".
type Repository struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
	name  string
}

// NewRepository opens a pool on cfg.DSN and pings it. The returned function
// closes the pool.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{pool: pool, table: splitFQN(cfg.Table), name: cfg.Table}, pool.Close, nil
}

// CopyFrom streams rows into the table with COPY.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		for j, v := range row {
			row[j] = toCopyVal(v)
		}
	}
	n, err := r.pool.CopyFrom(ctx, r.table, columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("copy into %s: %s (%s)", r.name, pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("copy into %s: %w", r.name, err)
	}
	return n, nil
}

// Exec runs sql on the pool.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// Truncate empties the table.
func (r *Repository) Truncate(ctx context.Context) error {
	if err := r.Exec(ctx, truncateSQL(r.table)); err != nil {
		return fmt.Errorf("truncate %s: %w", r.name, err)
	}
	return nil
}

func truncateSQL(id pgx.Identifier) string { return "TRUNCATE TABLE " + id.Sanitize() }

// toCopyVal turns decimals into an exact pgtype.Numeric, which binary COPY
// can encode.
func toCopyVal(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
	}
	return v
}

// splitFQN converts "schema.table" into {"schema", "table"}.
func splitFQN(fqn string) pgx.Identifier {
	var id pgx.Identifier
	for _, p := range strings.Split(fqn, ".") {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
