// Package record defines the canonical PGFN debtor record shared by the
// parser, the loaders and the exports.
package record

import (
	"strings"

	"github.com/shopspring/decimal"

	"dividapgfn/internal/ddl"
)

// Table is the consolidated table name.
const Table = "pgfn_devedores"

// AmountScale is the number of fraction digits kept for amounts. Amounts are
// persisted as integers in units of 10^-AmountScale (centavos).
const AmountScale = 2

// Columns is the stored column layout, in insert order.
var Columns = []string{
	"cpf_cnpj",
	"tipo_pessoa",
	"tipo_devedor",
	"nome_devedor",
	"uf_unidade_responsavel",
	"unidade_responsavel",
	"entidade_responsavel",
	"unidade_inscricao",
	"numero_inscricao",
	"tipo_situacao_inscricao",
	"situacao_inscricao",
	"receita_principal",
	"tipo_credito",
	"data_inscricao",
	"indicador_ajuizado",
	"valor_consolidado",
	"arquivo_origem",
}

// LegalEntity is the person type value identifying CNPJ debtors.
const LegalEntity = "PESSOA JURÍDICA"

// Principal is the debtor role of the primary obligor of an inscription.
const Principal = "PRINCIPAL"

// DebtRecord is one debt inscription line, unified across categories.
// Pointer fields are nil when the category does not carry them.
type DebtRecord struct {
	TaxpayerID            string
	PersonType            string
	DebtorRole            string
	DebtorName            string
	ResponsibleUnitState  string
	ResponsibleUnit       string
	ResponsibleEntity     *string // FGTS only
	InscriptionUnit       *string // FGTS only
	InscriptionNumber     string
	InscriptionStatusType string
	InscriptionStatus     string
	PrimaryRevenue        *string // absent for General
	CreditType            *string // General only
	InscriptionDate       string
	JudicialFlag          string
	Amount                decimal.Decimal
	Category              SourceCategory
}

// Unify maps the normalized fields of one line of category c into a
// DebtRecord. fields must already have the category's arity; the amount field
// is ignored in favor of the parsed amount.
func Unify(c SourceCategory, fields []string, amount decimal.Decimal) DebtRecord {
	r := DebtRecord{
		TaxpayerID:           StripTaxpayerID(fields[0]),
		PersonType:           fields[1],
		DebtorRole:           fields[2],
		DebtorName:           fields[3],
		ResponsibleUnitState: fields[4],
		ResponsibleUnit:      fields[5],
		Amount:               amount,
		Category:             c,
	}
	switch c {
	case FGTS:
		r.ResponsibleEntity = ptr(fields[6])
		r.InscriptionUnit = ptr(fields[7])
		r.InscriptionNumber = fields[8]
		r.InscriptionStatusType = fields[9]
		r.InscriptionStatus = fields[10]
		r.PrimaryRevenue = ptr(fields[11])
		r.InscriptionDate = fields[12]
		r.JudicialFlag = fields[13]
	case SocialSecurity:
		r.InscriptionNumber = fields[6]
		r.InscriptionStatusType = fields[7]
		r.InscriptionStatus = fields[8]
		r.PrimaryRevenue = ptr(fields[9])
		r.InscriptionDate = fields[10]
		r.JudicialFlag = fields[11]
	case General:
		r.InscriptionNumber = fields[6]
		r.InscriptionStatusType = fields[7]
		r.InscriptionStatus = fields[8]
		r.CreditType = ptr(fields[9])
		r.InscriptionDate = fields[10]
		r.JudicialFlag = fields[11]
	}
	return r
}

// Args returns the insert parameters for r aligned with Columns.
func (r DebtRecord) Args() []any {
	return []any{
		r.TaxpayerID,
		r.PersonType,
		r.DebtorRole,
		r.DebtorName,
		r.ResponsibleUnitState,
		r.ResponsibleUnit,
		nullable(r.ResponsibleEntity),
		nullable(r.InscriptionUnit),
		r.InscriptionNumber,
		r.InscriptionStatusType,
		r.InscriptionStatus,
		nullable(r.PrimaryRevenue),
		nullable(r.CreditType),
		r.InscriptionDate,
		r.JudicialFlag,
		Cents(r.Amount),
		r.Category.String(),
	}
}

// RootID returns the taxpayer root id: the first 8 digits for legal
// entities and the full id for everyone else.
func (r DebtRecord) RootID() string {
	if r.PersonType == LegalEntity && len(r.TaxpayerID) >= 8 {
		return r.TaxpayerID[:8]
	}
	return r.TaxpayerID
}

// Cents converts an amount to integer centavos. Digits beyond AmountScale
// are truncated; pgfn.ParseAmount rounds and range-checks amounts first.
func Cents(d decimal.Decimal) int64 {
	return d.Shift(AmountScale).IntPart()
}

// FromCents is the inverse of Cents.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -AmountScale)
}

var idSeparators = strings.NewReplacer(".", "", "/", "", "-", "")

// StripTaxpayerID removes the '.', '/' and '-' separators of a CPF/CNPJ.
func StripTaxpayerID(s string) string {
	return idSeparators.Replace(s)
}

func ptr(s string) *string { return &s }

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

var optional = map[string]bool{
	"entidade_responsavel": true,
	"unidade_inscricao":    true,
	"receita_principal":    true,
	"tipo_credito":         true,
}

// Fields is the logical schema of Table in Columns order. The amount has
// kind "cents" (integer centavos), the taxpayer id kind "document" (at most
// 14 digits); every other column is text.
func Fields() []ddl.Field {
	out := make([]ddl.Field, 0, len(Columns))
	for _, c := range Columns {
		kind := "text"
		switch c {
		case "valor_consolidado":
			kind = "cents"
		case "cpf_cnpj":
			kind = "document"
		}
		out = append(out, ddl.Field{Name: c, Kind: kind, Required: !optional[c]})
	}
	return out
}
