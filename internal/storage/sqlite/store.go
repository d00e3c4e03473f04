package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	gddl "dividapgfn/internal/ddl"
	"dividapgfn/internal/record"
	sqliteddl "dividapgfn/internal/storage/sqlite/ddl"
)

// ManifestTable records which source files went into a store.
const ManifestTable = "pgfn_arquivos"

// Indexes built over record.Table once every category is loaded.
var Indexes = []gddl.IndexDef{
	{Name: "index_cpf_cnpj", Table: record.Table, Exprs: []string{"cpf_cnpj"}},
	{Name: "index_cnpj_matriz", Table: record.Table, Exprs: []string{"substr(cpf_cnpj,1,8)"}},
}

var manifestFields = []gddl.Field{
	{Name: "run_id", Kind: "text", Required: true},
	{Name: "arquivo_origem", Kind: "text", Required: true},
	{Name: "arquivo", Kind: "text", Required: true},
	{Name: "linhas", Kind: "int", Required: true},
	{Name: "bytes", Kind: "int", Required: true},
	{Name: "xxh3", Kind: "text", Required: true},
	{Name: "carregado_em", Kind: "text", Required: true},
}

// FileEntry is one row of ManifestTable. Hash is the xxh3 of the raw file
// bytes as 16 hex digits.
type FileEntry struct {
	RunID    string `db:"run_id"`
	Category string `db:"arquivo_origem"`
	Name     string `db:"arquivo"`
	Lines    int64  `db:"linhas"`
	Bytes    int64  `db:"bytes"`
	Hash     string `db:"xxh3"`
	LoadedAt string `db:"carregado_em"`
}

// Store is the consolidated PGFN SQLite database.
type Store struct {
	db   *sqlx.DB
	path string
}

// Create builds a fresh store at path. An existing file is removed first.
func Create(ctx context.Context, path string) (*Store, error) {
	if err := removeFiles(path); err != nil {
		return nil, err
	}
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	// One connection keeps the load transaction and the DDL on the same file
	// handle.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: path}

	for _, def := range []gddl.TableDef{
		gddl.FromFields(record.Table, record.Fields(), sqliteddl.MapType),
		gddl.FromFields(ManifestTable, manifestFields, sqliteddl.MapType),
	} {
		if err := sqliteddl.EnsureTable(ctx, s, def); err != nil {
			_ = s.Discard()
			return nil, fmt.Errorf("sqlite: create %s: %w", def.FQN, err)
		}
	}
	log.Printf("sqlite: created store path=%s", path)
	return s, nil
}

// OpenStore opens an existing store read-only.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sqlite: store %s: %w", path, err)
	}
	uri, err := ReadOnlyURI(path)
	if err != nil {
		return nil, err
	}
	db, err := Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Path is the store's file path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle for read queries.
func (s *Store) DB() *sqlx.DB { return s.db }

// Exec runs a raw statement. It lets the store act as a DDL Execer.
func (s *Store) Exec(ctx context.Context, q string) error {
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// Tx is the single write transaction of a load. Nothing is visible in the
// store until Commit.
type Tx struct {
	tx     *sqlx.Tx
	insert *sqlx.Stmt
	done   bool
}

// Begin starts the load transaction with a prepared insert into record.Table.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PreparexContext(ctx, insertSQL(record.Table, record.Columns))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	return &Tx{tx: tx, insert: stmt}, nil
}

// CopyFrom inserts rows aligned with record.Columns. It matches
// storage.CopyFn so a Batcher can drive it.
func (t *Tx) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if t.done {
		return 0, fmt.Errorf("sqlite: transaction already finished")
	}
	if len(columns) != len(record.Columns) {
		return 0, fmt.Errorf("sqlite: got %d columns want %d", len(columns), len(record.Columns))
	}
	return execRows(ctx, t.insert, len(columns), rows)
}

// AddFile appends a manifest row.
func (t *Tx) AddFile(ctx context.Context, e FileEntry) error {
	if e.LoadedAt == "" {
		e.LoadedAt = time.Now().UTC().Format(time.RFC3339)
	}
	q := fmt.Sprintf(
		`INSERT INTO %s (run_id, arquivo_origem, arquivo, linhas, bytes, xxh3, carregado_em)
		 VALUES (:run_id, :arquivo_origem, :arquivo, :linhas, :bytes, :xxh3, :carregado_em)`,
		sqliteddl.QuoteIdent(ManifestTable))
	if _, err := t.tx.NamedExecContext(ctx, q, e); err != nil {
		return fmt.Errorf("sqlite: manifest %s: %w", e.Name, err)
	}
	return nil
}

// Commit makes the load visible.
func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("sqlite: transaction already finished")
	}
	t.done = true
	_ = t.insert.Close()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Rollback discards the load. It is a no-op after Commit or a previous
// Rollback, so callers can defer it.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	_ = t.insert.Close()
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("sqlite: rollback: %w", err)
	}
	return nil
}

// BuildIndexes creates Indexes on the committed data.
func (s *Store) BuildIndexes(ctx context.Context) error {
	for _, ix := range Indexes {
		start := time.Now()
		q, err := sqliteddl.BuildCreateIndexSQL(ix)
		if err != nil {
			return err
		}
		if err := s.Exec(ctx, q); err != nil {
			return fmt.Errorf("sqlite: index %s: %w", ix.Name, err)
		}
		log.Printf("sqlite: index %s built in %s", ix.Name, time.Since(start).Truncate(time.Millisecond))
	}
	return nil
}

// Count returns the number of debt records in the store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + sqliteddl.QuoteIdent(record.Table)
	if err := s.db.GetContext(ctx, &n, q); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// Manifest lists the loaded files in load order.
func (s *Store) Manifest(ctx context.Context) ([]FileEntry, error) {
	var out []FileEntry
	q := "SELECT run_id, arquivo_origem, arquivo, linhas, bytes, xxh3, carregado_em FROM " +
		sqliteddl.QuoteIdent(ManifestTable) + " ORDER BY rowid"
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("sqlite: manifest: %w", err)
	}
	return out, nil
}

// Rows streams the debt records in insert order with record.Columns.
func (s *Store) Rows(ctx context.Context) (*sqlx.Rows, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid",
		quotedList(record.Columns), sqliteddl.QuoteIdent(record.Table))
	rows, err := s.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan %s: %w", record.Table, err)
	}
	return rows, nil
}

// Close closes the handle and keeps the file.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close: %w", err)
	}
	return nil
}

// Discard closes the handle and removes the file and its journal.
func (s *Store) Discard() error {
	_ = s.db.Close()
	return removeFiles(s.path)
}

func removeFiles(path string) error {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("sqlite: remove %s: %w", p, err)
		}
	}
	return nil
}
