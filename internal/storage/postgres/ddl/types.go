// Package ddl renders Postgres DDL for the publish target.
package ddl

import "strings"

// MapType maps a logical kind into a Postgres column type. Text has no
// length limit in Postgres, so documents stay TEXT.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "cents":
		return "BIGINT"
	case "money":
		return "NUMERIC(18,2)"
	default:
		return "TEXT"
	}
}
