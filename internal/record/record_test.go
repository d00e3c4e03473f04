package record

import (
	"testing"

	"github.com/shopspring/decimal"
)

func fieldsFor(c SourceCategory) []string {
	f := make([]string, c.Arity())
	for i := range f {
		f[i] = "F" + string(rune('A'+i))
	}
	f[0] = "12.345.678/0001-90"
	return f
}

// TestUnify_NullSetPerCategory checks that each category populates exactly
// its own optional columns and leaves the rest NULL.
func TestUnify_NullSetPerCategory(t *testing.T) {
	t.Parallel()

	idx := func(name string) int {
		for i, c := range Columns {
			if c == name {
				return i
			}
		}
		t.Fatalf("unknown column %q", name)
		return -1
	}

	tests := []struct {
		cat      SourceCategory
		wantNull []string
	}{
		{FGTS, []string{"tipo_credito"}},
		{SocialSecurity, []string{"entidade_responsavel", "unidade_inscricao", "tipo_credito"}},
		{General, []string{"entidade_responsavel", "unidade_inscricao", "receita_principal"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.cat.String(), func(t *testing.T) {
			t.Parallel()

			r := Unify(tc.cat, fieldsFor(tc.cat), decimal.RequireFromString("10.50"))
			args := r.Args()
			if len(args) != len(Columns) {
				t.Fatalf("args: got %d want %d", len(args), len(Columns))
			}
			null := map[int]bool{}
			for _, name := range tc.wantNull {
				null[idx(name)] = true
			}
			for i, a := range args {
				if null[i] && a != nil {
					t.Fatalf("%s: got %v want NULL", Columns[i], a)
				}
				if !null[i] && a == nil {
					t.Fatalf("%s: unexpected NULL", Columns[i])
				}
			}
			if got := args[idx("arquivo_origem")]; got != tc.cat.String() {
				t.Fatalf("arquivo_origem: got %v want %s", got, tc.cat)
			}
			if got := args[idx("valor_consolidado")]; got != int64(1050) {
				t.Fatalf("valor_consolidado: got %v want 1050", got)
			}
			if r.TaxpayerID != "12345678000190" {
				t.Fatalf("taxpayer id: got %q", r.TaxpayerID)
			}
		})
	}
}

func TestUnify_FieldPositions(t *testing.T) {
	t.Parallel()

	f := fieldsFor(General)
	r := Unify(General, f, decimal.Zero)
	if r.InscriptionNumber != f[6] || *r.CreditType != f[9] || r.JudicialFlag != f[11] {
		t.Fatalf("general positions wrong: %+v", r)
	}

	f = fieldsFor(FGTS)
	r = Unify(FGTS, f, decimal.Zero)
	if *r.ResponsibleEntity != f[6] || *r.InscriptionUnit != f[7] || r.InscriptionNumber != f[8] || r.InscriptionDate != f[12] {
		t.Fatalf("fgts positions wrong: %+v", r)
	}
}

func TestRootID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		personType, id, want string
	}{
		{LegalEntity, "12345678000190", "12345678"},
		{"PESSOA FÍSICA", "12345678901", "12345678901"},
		{LegalEntity, "1234", "1234"},
	}
	for _, tc := range tests {
		r := DebtRecord{PersonType: tc.personType, TaxpayerID: tc.id}
		if got := r.RootID(); got != tc.want {
			t.Fatalf("RootID(%q,%q): got %q want %q", tc.personType, tc.id, got, tc.want)
		}
	}
}

func TestCentsRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"0", "0.01", "1234567.89", "-5.10"} {
		d := decimal.RequireFromString(s)
		if got := FromCents(Cents(d)); !got.Equal(d) {
			t.Fatalf("round trip %s: got %s", s, got)
		}
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	for _, c := range Categories {
		got, err := ParseCategory(c.String())
		if err != nil || got != c {
			t.Fatalf("ParseCategory(%s): got %v, %v", c, got, err)
		}
	}
	if _, err := ParseCategory("OUTRO"); err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	fields := Fields()
	if len(fields) != len(Columns) {
		t.Fatalf("fields: got %d want %d", len(fields), len(Columns))
	}
	kinds := map[string]string{}
	for i, f := range fields {
		if f.Name != Columns[i] {
			t.Fatalf("field %d: got %s want %s", i, f.Name, Columns[i])
		}
		kinds[f.Name] = f.Kind
		if f.Required == optional[f.Name] {
			t.Fatalf("%s: required=%v", f.Name, f.Required)
		}
	}
	if kinds["cpf_cnpj"] != "document" || kinds["valor_consolidado"] != "cents" || kinds["nome_devedor"] != "text" {
		t.Fatalf("kinds: %v", kinds)
	}
}
