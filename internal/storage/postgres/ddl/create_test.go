package ddl

import (
	"strings"
	"testing"

	gddl "dividapgfn/internal/ddl"
)

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "cpf_cnpj", want: `"cpf_cnpj"`},
		{name: "empty", in: "", want: `""`},
		{name: "with double quote", in: `weird"name`, want: `"weird""name"`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := quoteIdent(tt.in); got != tt.want {
				t.Fatalf("quoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	fields := []gddl.Field{
		{Name: "cpf_cnpj", Kind: "text", Required: true},
		{Name: "tipo_credito", Kind: "text"},
		{Name: "valor_consolidado", Kind: "money", Required: true},
	}
	got, err := BuildCreateTableSQL(gddl.FromFields("public.pgfn_devedores", fields, MapType))
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"public\".\"pgfn_devedores\" (\n" +
		"  \"cpf_cnpj\" TEXT NOT NULL,\n" +
		"  \"tipo_credito\" TEXT,\n" +
		"  \"valor_consolidado\" NUMERIC(18,2) NOT NULL\n" +
		");"
	if got != want {
		t.Fatalf("SQL mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildCreateTableSQL_PrimaryKeyNotNull(t *testing.T) {
	t.Parallel()

	got, err := BuildCreateTableSQL(gddl.TableDef{
		FQN:     "t",
		Columns: []gddl.ColumnDef{{Name: "id", SQLType: "BIGINT", Nullable: true, PrimaryKey: true}},
	})
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	if !strings.Contains(got, `"id" BIGINT NOT NULL`) || !strings.Contains(got, `PRIMARY KEY ("id")`) {
		t.Fatalf("got %s", got)
	}
}

func TestBuildCreateTableSQLErrors(t *testing.T) {
	t.Parallel()

	tests := []gddl.TableDef{
		{},
		{FQN: "t"},
		{FQN: "t", Columns: []gddl.ColumnDef{{Name: "", SQLType: "TEXT"}}},
		{FQN: "t", Columns: []gddl.ColumnDef{{Name: "a"}}},
	}
	for i, def := range tests {
		if _, err := BuildCreateTableSQL(def); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
