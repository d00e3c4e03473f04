package ddl

import "strings"

// MapType maps a logical kind into a SQL Server column type. Documents get a
// bounded VARCHAR so they can be indexed; other text is NVARCHAR(MAX).
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "cents":
		return "BIGINT"
	case "money":
		return "DECIMAL(18,2)"
	case "document":
		return "VARCHAR(14)"
	default:
		return "NVARCHAR(MAX)"
	}
}
