package mysql

import (
	"strings"

	gddl "dividapgfn/internal/ddl"
)

// MapType maps a logical kind into a MySQL column type. TEXT cannot be
// indexed without a prefix length, so documents get VARCHAR(14).
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "cents":
		return "BIGINT"
	case "money":
		return "DECIMAL(18,2)"
	case "document":
		return "VARCHAR(14)"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL returns a CREATE TABLE IF NOT EXISTS statement with
// backtick-quoted identifiers.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.RenderCreateTable(t, "CREATE TABLE IF NOT EXISTS", quoteIdent)
}

// quoteIdent quotes a MySQL identifier with backticks.
func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func quoteFQN(name string) string { return gddl.QuoteFQN(name, quoteIdent) }
