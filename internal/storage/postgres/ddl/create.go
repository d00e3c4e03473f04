package ddl

import (
	"strings"

	gddl "dividapgfn/internal/ddl"
)

// BuildCreateTableSQL returns a Postgres CREATE TABLE IF NOT EXISTS statement
// with double-quoted identifiers. "public.t" is quoted per segment.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	// Primary keys are always NOT NULL in Postgres.
	cols := make([]gddl.ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		if c.PrimaryKey {
			c.Nullable = false
		}
		cols[i] = c
	}
	t.Columns = cols
	return gddl.RenderCreateTable(t, "CREATE TABLE IF NOT EXISTS", quoteIdent)
}

// quoteIdent quotes a single identifier segment for Postgres, e.g.:
//
//	quoteIdent(`cpf_cnpj`)   => `"cpf_cnpj"`
//	quoteIdent(`weird"name`) => `"weird""name"`
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
