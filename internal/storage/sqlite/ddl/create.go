package ddl

import (
	"context"
	"strings"

	gddl "dividapgfn/internal/ddl"
)

// BuildCreateTableSQL returns a SQLite CREATE TABLE IF NOT EXISTS statement
// with double-quoted identifiers. Dotted names ("main.t") are quoted per
// segment.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.RenderCreateTable(t, "CREATE TABLE IF NOT EXISTS", quoteIdent)
}

// BuildCreateIndexSQL returns a SQLite CREATE INDEX IF NOT EXISTS statement.
// Expression entries (anything that is not a bare identifier) are emitted
// verbatim.
func BuildCreateIndexSQL(ix gddl.IndexDef) (string, error) {
	return gddl.RenderCreateIndex(ix, "IF NOT EXISTS", quoteIdent)
}

// Execer is the subset of a repository or connection used to apply DDL.
type Execer interface {
	Exec(ctx context.Context, sql string) error
}

// EnsureTable renders def and applies it through repo.
func EnsureTable(ctx context.Context, repo Execer, def gddl.TableDef) error {
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sql)
}

// QuoteIdent double-quotes a SQLite identifier.
func QuoteIdent(id string) string { return quoteIdent(id) }

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
