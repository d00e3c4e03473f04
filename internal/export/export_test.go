package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"

	"dividapgfn/internal/datasource/file"
	"dividapgfn/internal/record"
	"dividapgfn/internal/storage/sqlite"
)

var registryDDL = []string{
	`CREATE TABLE cnpj_dados_cadastrais_pj (cnpj TEXT, identificador_matriz_filial TEXT,
		razao_social TEXT, nome_fantasia TEXT, situacao_cadastral TEXT, data_situacao_cadastral TEXT,
		motivo_situacao_cadastral TEXT, nm_cidade_exterior TEXT, cod_pais TEXT, nm_pais TEXT,
		codigo_natureza_juridica TEXT, data_inicio_atividade TEXT, cnae_fiscal TEXT,
		descricao_tipo_logradouro TEXT, logradouro TEXT, numero TEXT, complemento TEXT, bairro TEXT,
		cep TEXT, uf TEXT, codigo_municipio TEXT, municipio TEXT, ddd_telefone_1 TEXT,
		ddd_telefone_2 TEXT, ddd_fax TEXT, correio_eletronico TEXT, qualificacao_responsavel TEXT,
		capital_social_empresa REAL, porte_empresa TEXT, opcao_pelo_simples TEXT,
		data_opcao_pelo_simples TEXT, data_exclusao_simples TEXT, opcao_pelo_mei TEXT,
		situacao_especial TEXT, data_situacao_especial TEXT)`,
	`CREATE TABLE tab_cnae (cod_cnae TEXT, nm_cnae TEXT)`,
	`CREATE TABLE tab_natureza_juridica (cod_natureza_juridica TEXT, nm_natureza_juridica TEXT,
		cod_subclass_natureza_juridica TEXT, nm_subclass_natureza_juridica TEXT)`,
	`CREATE TABLE cnpj_dados_socios_pj (cnpj TEXT, identificador_socio TEXT, nome_socio TEXT,
		cnpj_cpf_socio TEXT, cod_qualificacao_socio TEXT, data_entrada_sociedade TEXT,
		cpf_representante_legal TEXT, nome_representante TEXT, cod_qualificacao_representante_legal TEXT)`,
	`CREATE TABLE tab_qualificacao_responsavel_socio (cod_qualificacao_responsavel_socio TEXT,
		nm_qualificacao_responsavel_socio TEXT)`,
	`CREATE TABLE cnpj_dados_cnae_secundario_pj (cnpj TEXT, cnae_secundario TEXT)`,
}

// newQuerier returns an in-memory registry with temp.divida already staged.
func newQuerier(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, q := range registryDDL {
		mustExec(t, db, q)
	}
	cols := make([]string, 0, len(record.Columns)+1)
	for _, c := range record.Columns {
		if c == "valor_consolidado" {
			cols = append(cols, c+" INTEGER")
			continue
		}
		cols = append(cols, c+" TEXT")
	}
	cols = append(cols, "cnpj_matriz TEXT")
	mustExec(t, db, "CREATE TEMP TABLE divida ("+strings.Join(cols, ", ")+")")
	return db
}

func mustExec(t *testing.T, db *sqlx.DB, q string, args ...any) {
	t.Helper()
	if _, err := db.Exec(q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

func addDebt(t *testing.T, db *sqlx.DB, id, person, role, number string, cents int64) {
	t.Helper()
	fields := []string{id, person, role, "NOME " + id, "SP", "PRFN", number,
		"EM COBRANCA", "ATIVA", "MULTA", "2020-01-01", "SIM", "0"}
	args := record.Unify(record.General, fields, record.FromCents(cents)).Args()
	root := id
	if person == record.LegalEntity {
		root = id[:8]
	}
	args = append(args, root)
	mustExec(t, db, "INSERT INTO temp.divida VALUES (?"+strings.Repeat(", ?", len(args)-1)+")", args...)
}

func readLatin1(t *testing.T, path string) string {
	t.Helper()
	s, err := file.ReadText(context.Background(), path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return s
}

func TestRun_CoLiabilityOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newQuerier(t)

	addDebt(t, db, "11111111000191", record.LegalEntity, record.Principal, "I1", 1050)
	addDebt(t, db, "22222222000100", record.LegalEntity, "CORRESPONSAVEL", "I1", 1050)
	addDebt(t, db, "33333333000100", record.LegalEntity, "CORRESPONSAVEL", "I1", 1050)
	addDebt(t, db, "11111111000191", record.LegalEntity, record.Principal, "I2", 500)
	addDebt(t, db, "22222222000100", record.LegalEntity, "CORRESPONSAVEL", "I2", 500)
	addDebt(t, db, "44444444000100", record.LegalEntity, record.Principal, "I3", 500000)
	addDebt(t, db, "55566677788", "PESSOA FÍSICA", "CORRESPONSAVEL", "I3", 500000)

	var co Projection
	for _, p := range Projections() {
		if p.Name == "corresponsaveis" {
			co = p
		}
	}
	dir := t.TempDir()
	res, err := Run(ctx, db, []Projection{co}, Options{Dir: dir, Separator: ';', Format: DefaultNumberFormat()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rows["corresponsaveis"] != 3 {
		t.Fatalf("rows: got %d want 3", res.Rows["corresponsaveis"])
	}

	got := readLatin1(t, filepath.Join(dir, "corresponsaveis.csv"))
	want := "cpf_cnpj_principal;nm_devedor_principal;cpf_cnpj_secundario;nm_devedor_secundario;valor_corresponsabilidade;divida_devedor_principal\n" +
		`"44444444";"NOME 44444444000100";"55566677788";"NOME 55566677788";5000;5000` + "\n" +
		`"11111111";"NOME 11111111000191";"22222222";"NOME 22222222000100";15,5;15,5` + "\n" +
		`"11111111";"NOME 11111111000191";"33333333";"NOME 33333333000100";10,5;15,5` + "\n"
	if got != want {
		t.Fatalf("corresponsaveis.csv:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRun_AllProjections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newQuerier(t)

	addDebt(t, db, "11111111000191", record.LegalEntity, record.Principal, "I1", 123456)
	mustExec(t, db, `INSERT INTO cnpj_dados_cadastrais_pj (cnpj, razao_social, nome_fantasia, cnae_fiscal,
		codigo_natureza_juridica, capital_social_empresa) VALUES ('11111111000191', 'AÇAÍ "BOM" LTDA', NULL, '0111', '2062', 1500000.5)`)
	mustExec(t, db, `INSERT INTO tab_cnae VALUES ('0111', 'CULTIVO'||char(10)||'DE CEREAIS')`)
	mustExec(t, db, `INSERT INTO tab_natureza_juridica VALUES ('206', 'SOCIEDADE', '2062', 'LIMITADA')`)
	mustExec(t, db, `INSERT INTO cnpj_dados_socios_pj (cnpj, identificador_socio, nome_socio) VALUES ('11111111000191', '2', 'JOSÉ')`)
	mustExec(t, db, `INSERT INTO cnpj_dados_cnae_secundario_pj VALUES ('11111111000191', '0112')`)
	// Not a root in divida.
	mustExec(t, db, `INSERT INTO cnpj_dados_cnae_secundario_pj VALUES ('99999999000199', '0111')`)

	dir := filepath.Join(t.TempDir(), OutputDir)
	nf := DefaultNumberFormat()
	nf.Grouping = true
	res, err := Run(ctx, db, Projections(), Options{Dir: dir, Separator: ';', Format: nf, XLSX: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Files) != 10 {
		t.Fatalf("files: got %d want 10: %v", len(res.Files), res.Files)
	}
	for name, want := range map[string]int64{"divida": 1, "cnpj": 1, "socios": 1, "cnae_secundaria": 1, "corresponsaveis": 0} {
		if res.Rows[name] != want {
			t.Fatalf("%s rows: got %d want %d", name, res.Rows[name], want)
		}
	}

	divida := readLatin1(t, filepath.Join(dir, "divida.csv"))
	lines := strings.Split(strings.TrimSuffix(divida, "\n"), "\n")
	if !strings.HasSuffix(lines[0], ";arquivo_origem;cpf_cnpj_matriz") {
		t.Fatalf("divida header: %s", lines[0])
	}
	if !strings.Contains(lines[1], `;"";"";`) || !strings.Contains(lines[1], ";1.234,56;") ||
		!strings.HasSuffix(lines[1], `"GERAL";"11111111"`) {
		t.Fatalf("divida row: %s", lines[1])
	}

	cnpj := readLatin1(t, filepath.Join(dir, "cnpj.csv"))
	for _, frag := range []string{`"AÇAÍ ""BOM"" LTDA";""`, `"CULTIVO DE CEREAIS"`, `;1.500.000,5;`, `"LIMITADA"`} {
		if !strings.Contains(cnpj, frag) {
			t.Fatalf("cnpj.csv lacks %s:\n%s", frag, cnpj)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, "socios.csv"))
	if err != nil {
		t.Fatalf("read socios: %v", err)
	}
	if !bytes.Contains(raw, []byte{'J', 'O', 'S', 0xC9}) {
		t.Fatalf("socios.csv is not ISO-8859-1: %q", raw)
	}

	f, err := excelize.OpenFile(filepath.Join(dir, "divida.xlsx"))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	v, err := f.GetCellValue("divida", "P2")
	if err != nil {
		t.Fatalf("cell: %v", err)
	}
	if v != "1234.56" {
		t.Fatalf("xlsx amount: got %q want 1234.56", v)
	}
	if h, _ := f.GetCellValue("divida", "A1"); h != "cpf_cnpj" {
		t.Fatalf("xlsx header: got %q", h)
	}
}

// A failing projection removes every file the run had written.
func TestRun_CleansUpOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newQuerier(t)
	addDebt(t, db, "11111111000191", record.LegalEntity, record.Principal, "I1", 1)

	ps := Projections()[:1]
	ps = append(ps, Projection{Name: "quebrada", Columns: texts("x"), SQL: "SELECT x FROM nao_existe"})

	dir := t.TempDir()
	_, err := Run(ctx, db, ps, Options{Dir: dir, Format: DefaultNumberFormat(), XLSX: true})
	if err == nil || !strings.Contains(err.Error(), "quebrada") {
		t.Fatalf("got %v want query error for quebrada", err)
	}
	entries, rerr := os.ReadDir(dir)
	if rerr != nil {
		t.Fatalf("readdir: %v", rerr)
	}
	if len(entries) != 0 {
		t.Fatalf("files left behind: %v", entries)
	}
}

func TestRun_ColumnCountMismatch(t *testing.T) {
	t.Parallel()
	db := newQuerier(t)
	p := Projection{Name: "x", Columns: texts("a"), SQL: "SELECT 1, 2"}
	_, err := Run(context.Background(), db, []Projection{p}, Options{Dir: t.TempDir(), Format: DefaultNumberFormat()})
	if err == nil || !strings.Contains(err.Error(), "2 columns, want 1") {
		t.Fatalf("got %v", err)
	}
}

func TestCSVWriter_ReplacesUnmappable(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "x.csv")
	w, err := NewCSVWriter(path, '|', DefaultNumberFormat())
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	if err := w.WriteHeader(texts("a", "b")); err != nil {
		t.Fatalf("header: %v", err)
	}
	if err := w.WriteRow([]Value{{Kind: Text, Text: "5€", Valid: true}, {Kind: Money}}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := []byte("a|b\n\"5\x1a\"|\n"); !bytes.Equal(raw, want) {
		t.Fatalf("got %q want %q", raw, want)
	}
}

// With ',' as the separator a pt-BR amount must stay one field.
func TestCSVWriter_QuotesNumbersHoldingSeparator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sep  rune
		nf   NumberFormat
		want string
	}{
		{',', DefaultNumberFormat(), "nome,valor\n\"A\",\"1234,56\"\n"},
		{';', DefaultNumberFormat(), "nome;valor\n\"A\";1234,56\n"},
		{'.', NumberFormat{DecimalSep: ",", GroupSep: ".", Grouping: true, MaxFraction: 3}, "nome.valor\n\"A\".\"1.234,56\"\n"},
	}
	for _, tc := range tests {
		path := filepath.Join(t.TempDir(), "x.csv")
		w, err := NewCSVWriter(path, tc.sep, tc.nf)
		if err != nil {
			t.Fatalf("NewCSVWriter: %v", err)
		}
		if err := w.WriteHeader(texts("nome", "valor")); err != nil {
			t.Fatalf("header: %v", err)
		}
		row := []Value{{Kind: Text, Text: "A", Valid: true}, {Kind: Money, Num: record.FromCents(123456), Valid: true}}
		if err := w.WriteRow(row); err != nil {
			t.Fatalf("row: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(raw) != tc.want {
			t.Fatalf("sep %q: got %q want %q", tc.sep, raw, tc.want)
		}
	}
}

func TestXLSXWriter_ExactAmounts(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "x.xlsx")
	w, err := NewXLSXWriter(path, "valores")
	if err != nil {
		t.Fatalf("NewXLSXWriter: %v", err)
	}
	if err := w.WriteHeader(texts("valor")); err != nil {
		t.Fatalf("header: %v", err)
	}
	amounts := []int64{123456, 10, -5, 9223372036854775807}
	for _, c := range amounts {
		if err := w.WriteRow([]Value{{Kind: Money, Num: record.FromCents(c), Valid: true}}); err != nil {
			t.Fatalf("row: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("valores", excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	want := []string{"1234.56", "0.1", "-0.05", "92233720368547758.07"}
	for i, w := range want {
		if got := rows[i+1][0]; got != w {
			t.Fatalf("row %d: got %q want %q", i+1, got, w)
		}
	}
	if typ, _ := f.GetCellType("valores", "A2"); typ == excelize.CellTypeInlineString {
		t.Fatalf("A2 is a text cell")
	}
	if typ, _ := f.GetCellType("valores", "A5"); typ != excelize.CellTypeInlineString {
		t.Fatalf("A5 type: got %v want inline string", typ)
	}
}

func TestProjections_Shape(t *testing.T) {
	t.Parallel()
	want := map[string]int{"divida": 18, "cnpj": 40, "socios": 13, "cnae_secundaria": 6, "corresponsaveis": 6}
	ps := Projections()
	if len(ps) != len(want) {
		t.Fatalf("projections: got %d want %d", len(ps), len(want))
	}
	for _, p := range ps {
		if len(p.Columns) != want[p.Name] {
			t.Fatalf("%s: got %d columns want %d", p.Name, len(p.Columns), want[p.Name])
		}
	}
	if c := ps[1].Columns[32]; c.Name != "capital_social_empresa" || c.Kind != Number {
		t.Fatalf("capital column: %+v", c)
	}
}
