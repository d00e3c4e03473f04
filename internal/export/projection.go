package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"dividapgfn/internal/record"
)

// Kind is how a column is rendered.
type Kind int

const (
	Text   Kind = iota // quoted string
	Money              // integer centavos, rendered as a decimal
	Number             // arbitrary decimal stored as text or number
)

// Column is one output column.
type Column struct {
	Name string
	Kind Kind
}

// Projection is one export file: a query over temp.divida and the registry,
// and the columns it yields, in order.
type Projection struct {
	Name    string // file name without extension
	Columns []Column
	SQL     string
}

func texts(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Column{Name: n, Kind: Text}
	}
	return out
}

// Projections returns the five exports, in write order.
func Projections() []Projection {
	entity := "'" + record.LegalEntity + "'"
	principal := "'" + record.Principal + "'"

	debtCols := make([]Column, 0, len(record.Columns)+1)
	for _, c := range record.Columns {
		k := Text
		if c == "valor_consolidado" {
			k = Money
		}
		debtCols = append(debtCols, Column{Name: c, Kind: k})
	}
	debtCols = append(debtCols, Column{Name: "cpf_cnpj_matriz", Kind: Text})

	cnpjCols := texts(
		"cnpj", "cnpj_matriz", "identificador_matriz_filial", "razao_social", "nome_fantasia",
		"situacao_cadastral", "data_situacao_cadastral", "motivo_situacao_cadastral",
		"nm_cidade_exterior", "cod_pais", "nm_pais", "cod_natureza_juridica",
		"nm_natureza_juridica", "cod_subclass_natureza_juridica", "nm_subclass_natureza_juridica",
		"data_inicio_atividade", "cod_cnae", "nm_cnae", "descricao_tipo_logradouro",
		"logradouro", "numero", "complemento", "bairro", "cep", "uf", "codigo_municipio",
		"municipio", "ddd_telefone_1", "ddd_telefone_2", "ddd_fax", "correio_eletronico",
		"qualificacao_responsavel", "capital_social_empresa", "porte_empresa",
		"opcao_pelo_simples", "data_opcao_pelo_simples", "data_exclusao_simples",
		"opcao_pelo_mei", "situacao_especial", "data_situacao_especial",
	)
	cnpjCols[32].Kind = Number

	coCols := texts("cpf_cnpj_principal", "nm_devedor_principal", "cpf_cnpj_secundario", "nm_devedor_secundario")
	coCols = append(coCols,
		Column{Name: "valor_corresponsabilidade", Kind: Money},
		Column{Name: "divida_devedor_principal", Kind: Money},
	)

	return []Projection{
		{
			Name:    "divida",
			Columns: debtCols,
			SQL: "SELECT " + strings.Join(record.Columns, ", ") + ", cnpj_matriz" +
				" FROM temp.divida ORDER BY cpf_cnpj, data_inscricao, numero_inscricao",
		},
		{
			Name:    "cnpj",
			Columns: cnpjCols,
			SQL: `SELECT c.cnpj, substr(c.cnpj,1,8) AS cnpj_matriz, c.identificador_matriz_filial,
	c.razao_social, c.nome_fantasia, c.situacao_cadastral, c.data_situacao_cadastral,
	c.motivo_situacao_cadastral, c.nm_cidade_exterior, c.cod_pais, c.nm_pais,
	nj.cod_natureza_juridica, nj.nm_natureza_juridica, c.codigo_natureza_juridica,
	nj.nm_subclass_natureza_juridica, c.data_inicio_atividade, c.cnae_fiscal,
	replace(cnae.nm_cnae, char(10), ' ') AS nm_cnae, c.descricao_tipo_logradouro,
	c.logradouro, c.numero, c.complemento, c.bairro, c.cep, c.uf, c.codigo_municipio,
	c.municipio, c.ddd_telefone_1, c.ddd_telefone_2, c.ddd_fax, c.correio_eletronico,
	c.qualificacao_responsavel, c.capital_social_empresa, c.porte_empresa,
	c.opcao_pelo_simples, c.data_opcao_pelo_simples, c.data_exclusao_simples,
	c.opcao_pelo_mei, c.situacao_especial, c.data_situacao_especial
FROM cnpj_dados_cadastrais_pj c
LEFT OUTER JOIN tab_cnae cnae ON c.cnae_fiscal = cnae.cod_cnae
LEFT OUTER JOIN tab_natureza_juridica nj ON c.codigo_natureza_juridica = nj.cod_subclass_natureza_juridica
WHERE substr(c.cnpj,1,8) IN (SELECT cnpj_matriz FROM temp.divida WHERE tipo_pessoa = ` + entity + `)
ORDER BY c.cnpj`,
		},
		{
			Name: "socios",
			Columns: texts("cnpj", "identificador_matriz_filial", "razao_social", "nome_fantasia",
				"identificador_socio", "nome_socio", "cnpj_cpf_socio", "cod_qualificacao_socio",
				"nm_qualificacao_responsavel_socio", "data_entrada_sociedade",
				"cpf_representante_legal", "nome_representante", "cod_qualificacao_representante_legal"),
			SQL: `SELECT s.cnpj, p.identificador_matriz_filial, p.razao_social, p.nome_fantasia,
	s.identificador_socio, s.nome_socio, s.cnpj_cpf_socio, s.cod_qualificacao_socio,
	qs.nm_qualificacao_responsavel_socio, s.data_entrada_sociedade,
	s.cpf_representante_legal, s.nome_representante, s.cod_qualificacao_representante_legal
FROM cnpj_dados_socios_pj s
LEFT OUTER JOIN cnpj_dados_cadastrais_pj p ON s.cnpj = p.cnpj
LEFT OUTER JOIN tab_qualificacao_responsavel_socio qs ON s.cod_qualificacao_socio = qs.cod_qualificacao_responsavel_socio
WHERE substr(s.cnpj,1,8) IN (SELECT cnpj_matriz FROM temp.divida)
ORDER BY s.cnpj, s.identificador_socio`,
		},
		{
			Name: "cnae_secundaria",
			Columns: texts("cnpj", "identificador_matriz_filial", "razao_social", "nome_fantasia",
				"cnae_secundario", "nm_cnae"),
			SQL: `SELECT s.cnpj, p.identificador_matriz_filial, p.razao_social, p.nome_fantasia,
	s.cnae_secundario, replace(cnae.nm_cnae, char(10), ' ') AS nm_cnae
FROM cnpj_dados_cnae_secundario_pj s
LEFT OUTER JOIN cnpj_dados_cadastrais_pj p ON s.cnpj = p.cnpj
LEFT OUTER JOIN tab_cnae cnae ON s.cnae_secundario = cnae.cod_cnae
WHERE substr(s.cnpj,1,8) IN (SELECT cnpj_matriz FROM temp.divida)
ORDER BY s.cnpj, s.cnae_secundario`,
		},
		{
			Name:    "corresponsaveis",
			Columns: coCols,
			SQL: `WITH t_total AS (
	SELECT cnpj_matriz, sum(valor_consolidado) AS valor
	FROM temp.divida WHERE tipo_devedor = ` + principal + `
	GROUP BY cnpj_matriz
)
SELECT p.cnpj_matriz AS cpf_cnpj_principal, p.nome_devedor AS nome_devedor_principal,
	s.cnpj_matriz AS cpf_cnpj_secundario, s.nome_devedor AS nome_devedor_secundario,
	sum(p.valor_consolidado) AS valor_corresponsabilidade,
	t.valor AS divida_devedor_principal
FROM temp.divida p
JOIN temp.divida s ON p.numero_inscricao = s.numero_inscricao
JOIN t_total t ON p.cnpj_matriz = t.cnpj_matriz
WHERE p.tipo_devedor = ` + principal + ` AND s.tipo_devedor <> ` + principal + `
GROUP BY p.cnpj_matriz, p.nome_devedor, s.cnpj_matriz, s.nome_devedor
ORDER BY divida_devedor_principal DESC, valor_corresponsabilidade DESC, cpf_cnpj_secundario`,
		},
	}
}

// Header returns the column names of p.
func (p Projection) Header() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Name
	}
	return out
}

// Value is one decoded cell. Null cells have Valid false.
type Value struct {
	Kind  Kind
	Text  string
	Num   decimal.Decimal
	Valid bool
}

// decode turns a driver value into a Value of kind k.
func decode(k Kind, v any) (Value, error) {
	if v == nil {
		return Value{Kind: k}, nil
	}
	switch k {
	case Text:
		return Value{Kind: k, Text: asText(v), Valid: true}, nil
	case Money:
		c, err := asCents(v)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: k, Num: record.FromCents(c), Valid: true}, nil
	default:
		d, err := asDecimal(v)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: k, Num: d, Valid: true}, nil
	}
}

func asText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func asCents(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("money value %v is not whole centavos", x)
		}
		return int64(x), nil
	case string, []byte:
		n, err := strconv.ParseInt(asText(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("money value %q: %w", asText(x), err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("money value of type %T", v)
	}
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case string, []byte:
		s := strings.TrimSpace(asText(x))
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("number value %q: %w", asText(x), err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("number value of type %T", v)
	}
}
