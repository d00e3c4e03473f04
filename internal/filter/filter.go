// Package filter narrows the consolidated PGFN store down to the debts of a
// caller-selected set of taxpayers.
//
// The CNPJ registry is opened read-only as the main database and the store is
// attached as "pgfn". Run then stages three temp tables on one pinned
// connection:
//
//	cnpj              the caller query, indexed on the root column
//	inscricao_divida  inscriptions with at least one candidate debtor
//	divida            every debtor row of those inscriptions, plus cnpj_matriz
//
// The exports read temp.divida through Querier.
package filter

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"dividapgfn/internal/config"
	"dividapgfn/internal/record"
	"dividapgfn/internal/storage/sqlite"
	sqliteddl "dividapgfn/internal/storage/sqlite/ddl"
)

// Schema is the alias the store is attached under.
const Schema = "pgfn"

// Stage names reported in QueryError.
const (
	StageAttach       = "attach"
	StageCandidates   = "cnpj"
	StageInscriptions = "inscricao_divida"
	StageDebts        = "divida"
)

// QueryError reports a failed SQL step of the filter.
type QueryError struct {
	Stage string
	Err   error
}

func (e *QueryError) Error() string { return fmt.Sprintf("filter: stage %s: %v", e.Stage, e.Err) }

func (e *QueryError) Unwrap() error { return e.Err }

// Engine holds the registry handle and the pinned connection the temp tables
// live on.
type Engine struct {
	db         *sqlx.DB
	conn       *sqlx.Conn
	rootColumn string
}

// Option tweaks an Engine.
type Option func(*Engine)

// WithRootColumn sets the column of the candidate query holding the taxpayer
// root id. The default is config.DefaultRootColumn.
func WithRootColumn(col string) Option {
	return func(e *Engine) { e.rootColumn = col }
}

// Open opens registryPath read-only and attaches storePath as Schema.
func Open(ctx context.Context, registryPath, storePath string, opts ...Option) (*Engine, error) {
	if err := config.RequireFile(registryPath, "registry database"); err != nil {
		return nil, err
	}
	if err := config.RequireFile(storePath, "consolidated store"); err != nil {
		return nil, err
	}

	uri, err := sqlite.ReadOnlyURI(registryPath)
	if err != nil {
		return nil, err
	}
	db, err := sqlite.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("filter: pin connection: %w", err)
	}
	e := &Engine{db: db, conn: conn, rootColumn: config.DefaultRootColumn}
	for _, o := range opts {
		o(e)
	}

	storeURI, err := sqlite.ReadOnlyURI(storePath)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+Schema, storeURI); err != nil {
		_ = e.Close()
		return nil, &QueryError{Stage: StageAttach, Err: err}
	}
	log.Printf("filter: attached store=%s registry=%s", storePath, registryPath)
	return e, nil
}

// Querier exposes the pinned connection, where the temp tables are visible.
func (e *Engine) Querier() sqlx.QueryerContext { return e.conn }

// RootColumn is the candidate root id column in use.
func (e *Engine) RootColumn() string { return e.rootColumn }

// Summary counts the rows of each staged table.
type Summary struct {
	Candidates   int64
	Inscriptions int64
	Debts        int64
}

// Run stages the temp tables for query. Tables left by a previous Run on the
// same connection are dropped first.
func (e *Engine) Run(ctx context.Context, query string) (Summary, error) {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if query == "" {
		return Summary{}, &QueryError{Stage: StageCandidates, Err: fmt.Errorf("empty candidate query")}
	}

	for _, st := range e.stages(query) {
		start := time.Now()
		for _, q := range st.sql {
			if _, err := e.conn.ExecContext(ctx, q); err != nil {
				return Summary{}, &QueryError{Stage: st.name, Err: err}
			}
		}
		if st.check != nil {
			if err := st.check(ctx); err != nil {
				return Summary{}, &QueryError{Stage: st.name, Err: err}
			}
		}
		log.Printf("filter: stage %s built in %s", st.name, time.Since(start).Truncate(time.Millisecond))
	}

	var s Summary
	for _, c := range []struct {
		dst   *int64
		table string
	}{
		{&s.Candidates, StageCandidates},
		{&s.Inscriptions, StageInscriptions},
		{&s.Debts, StageDebts},
	} {
		if err := e.conn.GetContext(ctx, c.dst, "SELECT COUNT(*) FROM temp."+c.table); err != nil {
			return Summary{}, &QueryError{Stage: c.table, Err: err}
		}
	}
	log.Printf("filter: candidates=%d inscriptions=%d debts=%d", s.Candidates, s.Inscriptions, s.Debts)
	return s, nil
}

type stage struct {
	name  string
	sql   []string
	check func(context.Context) error
}

func (e *Engine) stages(query string) []stage {
	root := sqliteddl.QuoteIdent(e.rootColumn)
	store := Schema + "." + sqliteddl.QuoteIdent(record.Table)
	entity := "'" + record.LegalEntity + "'"

	return []stage{
		{name: StageCandidates, sql: []string{
			"DROP TABLE IF EXISTS temp.divida",
			"DROP TABLE IF EXISTS temp.inscricao_divida",
			"DROP TABLE IF EXISTS temp.cnpj",
			"CREATE TEMP TABLE cnpj AS " + query,
		}, check: e.checkRootColumn},
		{name: StageInscriptions, sql: []string{
			"CREATE INDEX temp.index_tmp_cnpj ON cnpj (" + root + ")",
			"CREATE TEMP TABLE inscricao_divida AS " +
				"SELECT numero_inscricao FROM " + store +
				" WHERE tipo_pessoa = " + entity +
				" AND substr(cpf_cnpj,1,8) IN (SELECT " + root + " FROM temp.cnpj)" +
				" UNION " +
				"SELECT numero_inscricao FROM " + store +
				" WHERE tipo_pessoa <> " + entity +
				" AND cpf_cnpj IN (SELECT " + root + " FROM temp.cnpj)",
			"CREATE INDEX temp.index_tmp_insc_divida ON inscricao_divida (numero_inscricao)",
		}},
		{name: StageDebts, sql: []string{
			"CREATE TEMP TABLE divida AS " +
				"SELECT d.*, CASE WHEN d.tipo_pessoa = " + entity +
				" THEN substr(d.cpf_cnpj,1,8) ELSE d.cpf_cnpj END AS cnpj_matriz" +
				" FROM " + store + " d" +
				" WHERE d.numero_inscricao IN (SELECT numero_inscricao FROM temp.inscricao_divida)",
			"CREATE INDEX temp.index_tmp_divida_cnpj ON divida (cnpj_matriz)",
			"CREATE INDEX temp.index_tmp_divida_insc ON divida (numero_inscricao)",
		}},
	}
}

// checkRootColumn fails when the candidate query does not expose the root
// column. A double-quoted name matching no column is a string literal in
// SQLite, so the later stages would match nothing without an error.
func (e *Engine) checkRootColumn(ctx context.Context) error {
	var n int
	q := "SELECT COUNT(*) FROM pragma_table_info('cnpj', 'temp') WHERE name = ? COLLATE NOCASE"
	if err := e.conn.GetContext(ctx, &n, q, e.rootColumn); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("candidate query has no column %q", e.rootColumn)
	}
	return nil
}

// Close releases the pinned connection and the registry handle. The temp
// tables go with the connection.
func (e *Engine) Close() error {
	var first error
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			first = fmt.Errorf("filter: close conn: %w", err)
		}
		e.conn = nil
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil && first == nil {
			first = fmt.Errorf("filter: close db: %w", err)
		}
		e.db = nil
	}
	return first
}
