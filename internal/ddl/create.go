// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render simple CREATE TABLE and CREATE INDEX statements from that model.
//
// The renderers here do not quote identifiers and emit no dialect-specific
// clauses. Backend packages (internal/storage/<backend>/ddl) wrap or replace
// them with their own quoting and type mapping.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a generic CREATE TABLE statement:
//
//	CREATE TABLE <FQN> (
//	  <name> <type> [NOT NULL] [DEFAULT <expr>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
func BuildCreateTableSQL(t TableDef) (string, error) {
	return RenderCreateTable(t, "CREATE TABLE", func(s string) string { return s })
}

// RenderCreateTable validates t and renders it with the given statement
// prefix and identifier quoting. Backends use it to share validation.
func RenderCreateTable(t TableDef, prefix string, quote func(string) string) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf("%s %s (\n  %s\n);", prefix, QuoteFQN(fqn, quote), strings.Join(cols, ",\n  ")), nil
}

// BuildCreateIndexSQL renders a generic CREATE [UNIQUE] INDEX statement.
func BuildCreateIndexSQL(ix IndexDef) (string, error) {
	return RenderCreateIndex(ix, "", func(s string) string { return s })
}

// RenderCreateIndex validates ix and renders it. ifNotExists is inserted
// after INDEX when non-empty (e.g. "IF NOT EXISTS").
func RenderCreateIndex(ix IndexDef, ifNotExists string, quote func(string) string) (string, error) {
	name := strings.TrimSpace(ix.Name)
	table := strings.TrimSpace(ix.Table)
	if name == "" || table == "" {
		return "", fmt.Errorf("ddl: index name and table must not be empty")
	}
	if len(ix.Exprs) == 0 {
		return "", fmt.Errorf("ddl: index %s has no columns", name)
	}

	var sb strings.Builder
	sb.WriteString("CREATE ")
	if ix.Unique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX ")
	if ifNotExists != "" {
		sb.WriteString(ifNotExists)
		sb.WriteByte(' ')
	}
	if s := strings.TrimSpace(ix.Schema); s != "" {
		sb.WriteString(quote(s))
		sb.WriteByte('.')
	}
	sb.WriteString(quote(name))
	sb.WriteString(" ON ")
	sb.WriteString(QuoteFQN(table, quote))
	sb.WriteString(" (")
	for i, e := range ix.Exprs {
		if i > 0 {
			sb.WriteString(", ")
		}
		if isPlainIdent(e) {
			sb.WriteString(quote(e))
		} else {
			sb.WriteString(e)
		}
	}
	sb.WriteString(");")
	return sb.String(), nil
}

// QuoteFQN quotes each dot-separated segment of fqn.
func QuoteFQN(fqn string, quote func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
