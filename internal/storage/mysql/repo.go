// Package mysql publishes to MySQL through go-sql-driver/mysql. MySQL has no
// COPY reachable from database/sql, so CopyFrom sends multi-row INSERT
// statements inside one transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"dividapgfn/internal/storage"
)

// maxPlaceholders stays under the server's 65535 prepared-parameter limit.
const maxPlaceholders = 60000

func init() {
	storage.RegisterBackend("mysql",
		func(ctx context.Context, cfg storage.Config) (storage.Table, func(), error) {
			return NewRepository(ctx, cfg)
		},
		MapType, BuildCreateTableSQL)
}

// Repository writes to one MySQL table.
type Repository struct {
	db    *sqlx.DB
	table string
}

// NewRepository parses the DSN (e.g. "user:pass@tcp(host:3306)/db"),
// connects and pings. The returned function closes the pool.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, func(), error) {
	dc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("dsn: %w", err)
	}
	connector, err := mysql.NewConnector(dc)
	if err != nil {
		return nil, nil, fmt.Errorf("connector: %w", err)
	}
	db := sqlx.NewDb(sql.OpenDB(connector), "mysql")
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, table: cfg.Table}, func() { _ = db.Close() }, nil
}

// CopyFrom inserts rows with as few statements as the placeholder limit
// allows.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (total int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("columns must not be empty")
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

	per := chunkRows(len(columns))
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		q, args, err := buildInsert(r.table, columns, rows[start:end])
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// Exec runs sqlText on the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// Truncate empties the table.
func (r *Repository) Truncate(ctx context.Context) error {
	if err := r.Exec(ctx, "TRUNCATE TABLE "+quoteFQN(r.table)); err != nil {
		return fmt.Errorf("truncate %s: %w", r.table, err)
	}
	return nil
}

func chunkRows(width int) int {
	return max(maxPlaceholders/width, 1)
}

// buildInsert renders INSERT INTO `t` (`a`, `b`) VALUES (?, ?), (?, ?).
func buildInsert(table string, columns []string, rows [][]any) (string, []any, error) {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", quoteFQN(table), strings.Join(quoted, ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("row length %d != columns length %d", len(row), len(columns))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		for _, v := range row {
			if d, ok := v.(decimal.Decimal); ok {
				v = d.String()
			}
			args = append(args, v)
		}
	}
	return sb.String(), args, nil
}
