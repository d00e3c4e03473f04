package ddl

// ColumnDef describes a single column in a table definition. Name is the
// unquoted column name; quoting happens at render time.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name (FQN, dotted form allowed) and its ordered
// columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// IndexDef describes a secondary index. Exprs are column names or raw SQL
// expressions (e.g. "substr(cpf_cnpj,1,8)"); expressions are emitted
// verbatim. Schema, when set, qualifies the index name SQLite-style
// ("CREATE INDEX temp.ix ON t"); Table must then be unqualified.
type IndexDef struct {
	Schema string
	Name   string
	Table  string
	Exprs  []string
	Unique bool
}

// Field is a backend-neutral column: a name and a logical kind such as
// "text", "int", "money" or "cents". Backends turn Fields into a TableDef
// with their own MapType.
type Field struct {
	Name     string
	Kind     string
	Required bool
}

// FromFields builds a TableDef for table by mapping each field's kind with
// mapType. Required fields become NOT NULL.
func FromFields(table string, fields []Field, mapType func(kind string) string) TableDef {
	cols := make([]ColumnDef, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, ColumnDef{
			Name:     f.Name,
			SQLType:  mapType(f.Kind),
			Nullable: !f.Required,
		})
	}
	return TableDef{FQN: table, Columns: cols}
}
