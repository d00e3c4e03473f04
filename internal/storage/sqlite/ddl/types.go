// Package ddl renders SQLite DDL for the consolidated store and the sqlite
// publish target.
package ddl

import "strings"

// MapType maps a logical kind into a SQLite column type. Money stays TEXT:
// NUMERIC affinity would turn "12.34" into a binary float.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "cents":
		return "INTEGER"
	default:
		return "TEXT"
	}
}
