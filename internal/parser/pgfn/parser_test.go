package pgfn

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"dividapgfn/internal/record"
)

const (
	fgtsLine  = "12.345.678/0001-90;Pessoa jurídica;principal;ACME ltda;SP;PRFN 3a Regiao;CEF;UNID X;FGSP200000001;Em cobrança;Ativa;Contribuição;01/02/2020;sim;1234.56"
	prevLine  = "123.456.789-01;PESSOA FÍSICA;CORRESPONSAVEL;FULANO;RJ;PRFN 2A REGIAO;PREV123;EM COBRANCA;ATIVA;CONTRIB;03/04/2019;NAO;10.00"
	geralLine = "98.765.432/0001-10;PESSOA JURÍDICA;PRINCIPAL;BETA SA;MG;PFN MG;80612000001;EM COBRANCA;ATIVA;IRPJ;05/06/2018;SIM;99999999.99"
)

func TestParse_Categories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		cat    record.SourceCategory
		id     string
		number string
		amount string
	}{
		{"fgts", fgtsLine, record.FGTS, "12345678000190", "FGSP200000001", "1234.56"},
		{"previdenciario", prevLine, record.SocialSecurity, "12345678901", "PREV123", "10"},
		{"geral", geralLine, record.General, "98765432000110", "80612000001", "99999999.99"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, err := Parse(tc.line, tc.cat)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if r.TaxpayerID != tc.id {
				t.Fatalf("taxpayer id: got %q want %q", r.TaxpayerID, tc.id)
			}
			if r.InscriptionNumber != tc.number {
				t.Fatalf("inscription: got %q want %q", r.InscriptionNumber, tc.number)
			}
			if !r.Amount.Equal(decimal.RequireFromString(tc.amount)) {
				t.Fatalf("amount: got %s want %s", r.Amount, tc.amount)
			}
			if r.Category != tc.cat {
				t.Fatalf("category: got %v want %v", r.Category, tc.cat)
			}
		})
	}
}

func TestParse_UpperCasesAndTrims(t *testing.T) {
	t.Parallel()

	r, err := Parse(fgtsLine, record.FGTS)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.PersonType != record.LegalEntity {
		t.Fatalf("person type: got %q want %q", r.PersonType, record.LegalEntity)
	}
	if r.DebtorName != "ACME LTDA" || r.JudicialFlag != "SIM" {
		t.Fatalf("not upper-cased: %+v", r)
	}

	line := strings.Replace(prevLine, "FULANO", "  fulano  ", 1)
	r, err = Parse(line, record.SocialSecurity)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.DebtorName != "FULANO" {
		t.Fatalf("not trimmed: %q", r.DebtorName)
	}
}

// TestParse_ArityMismatch checks that any field count other than the
// category's arity fails with ErrUnexpectedFormat.
func TestParse_ArityMismatch(t *testing.T) {
	t.Parallel()

	for _, c := range record.Categories {
		for _, n := range []int{1, c.Arity() - 1, c.Arity() + 1} {
			line := strings.Repeat("X;", n-1) + "1.00"
			_, err := Parse(line, c)
			if !errors.Is(err, ErrUnexpectedFormat) {
				t.Fatalf("%s with %d fields: got %v want ErrUnexpectedFormat", c, n, err)
			}
			var fe *FormatError
			if !errors.As(err, &fe) || fe.Category != c || fe.Fields != n {
				t.Fatalf("%s: FormatError not populated: %#v", c, err)
			}
		}
	}
}

func TestParse_InvalidAmount(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "abc", "1.2.3", "1,2,3", "100000000000000000", "-92233720368547758.09"} {
		line := prevLine[:strings.LastIndex(prevLine, ";")+1] + bad
		_, err := Parse(line, record.SocialSecurity)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %q: got %v want ErrInvalidAmount", bad, err)
		}
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"0", "0"},
		{"1234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"12,5", "12.5"},
		{" 7.10 ", "7.1"},
		{"10.000", "10"},
		{"10.125", "10.12"},
		{"10.135", "10.14"},
		{"0,005", "0"},
		{"92233720368547758.07", "92233720368547758.07"},
		{"-92233720368547758.08", "-92233720368547758.08"},
	}
	for _, tc := range tests {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("ParseAmount(%q): got %s want %s", tc.in, got, tc.want)
		}
		if back := record.FromCents(record.Cents(got)); !back.Equal(got) {
			t.Fatalf("ParseAmount(%q): centavos gave back %s", tc.in, back)
		}
	}
}

func TestReader_SkipsHeaderAndStopsOnError(t *testing.T) {
	t.Parallel()

	in := "CPF_CNPJ;TIPO_PESSOA;...\r\n" + prevLine + "\r\n" + prevLine + "\r\n" + "curta;demais\r\n" + prevLine + "\r\n"
	r := NewReader(strings.NewReader(in), record.SocialSecurity)

	for i := 0; i < 2; i++ {
		if _, err := r.Next(); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	_, err := r.Next()
	var le *LineError
	if !errors.As(err, &le) || le.Line != 4 {
		t.Fatalf("got %v want LineError at line 4", err)
	}
	if !errors.Is(err, ErrUnexpectedFormat) {
		t.Fatalf("got %v want ErrUnexpectedFormat", err)
	}
	if _, again := r.Next(); again != err {
		t.Fatalf("error not sticky: %v", again)
	}
}

func TestReader_HeaderOnlyAndEmpty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "HEADER\n"} {
		r := NewReader(strings.NewReader(in), record.FGTS)
		if _, err := r.Next(); err != io.EOF {
			t.Fatalf("input %q: got %v want io.EOF", in, err)
		}
	}
}

func TestReader_BlankLineIsFatal(t *testing.T) {
	t.Parallel()

	in := "HEADER\n" + geralLine + "\n\n" + geralLine + "\n"
	r := NewReader(strings.NewReader(in), record.General)
	if _, err := r.Next(); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrUnexpectedFormat) {
		t.Fatalf("blank line: got %v want ErrUnexpectedFormat", err)
	}
}
