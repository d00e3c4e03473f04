// Package pgfn parses the ';'-delimited PGFN debtor extracts into
// record.DebtRecord values.
//
// Parsing is strict: a line with the wrong number of fields or an amount that
// is not an exact decimal is a FormatError, and a Reader stops at the first
// one. Callers treat that as fatal for the whole load.
package pgfn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"dividapgfn/internal/record"
)

var (
	// ErrUnexpectedFormat reports a line whose field count does not match
	// its category's arity.
	ErrUnexpectedFormat = errors.New("unexpected file format")
	// ErrInvalidAmount reports a consolidated amount that is not a decimal
	// literal or does not fit in int64 centavos.
	ErrInvalidAmount = errors.New("invalid amount")
)

// FormatError carries the category of the offending file together with one
// of the sentinel errors above.
type FormatError struct {
	Category record.SourceCategory
	Fields   int // fields found; zero for amount errors
	Value    string
	Err      error
}

func (e *FormatError) Error() string {
	switch {
	case errors.Is(e.Err, ErrInvalidAmount):
		return fmt.Sprintf("%s: %v %q", e.Category, e.Err, e.Value)
	default:
		return fmt.Sprintf("%s: %v: got %d fields, want %d",
			e.Category, e.Err, e.Fields, e.Category.Arity())
	}
}

func (e *FormatError) Unwrap() error { return e.Err }

// Parse maps one raw data line of category c into a DebtRecord. The line is
// upper-cased before splitting, every field is trimmed, and the amount is the
// last field.
func Parse(line string, c record.SourceCategory) (record.DebtRecord, error) {
	if !c.Valid() {
		return record.DebtRecord{}, fmt.Errorf("pgfn: invalid category %d", int(c))
	}
	fields := strings.Split(strings.ToUpper(line), ";")
	if len(fields) != c.Arity() {
		return record.DebtRecord{}, &FormatError{Category: c, Fields: len(fields), Err: ErrUnexpectedFormat}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	raw := fields[len(fields)-1]
	amount, err := ParseAmount(raw)
	if err != nil {
		return record.DebtRecord{}, &FormatError{Category: c, Value: raw, Err: ErrInvalidAmount}
	}
	return record.Unify(c, fields, amount), nil
}

// ParseAmount parses a monetary literal exactly. Plain literals ("1234.56")
// and pt-BR literals ("1.234,56") are accepted; a comma marks the latter.
// Digits beyond record.AmountScale are rounded half-even, the rounding the
// exports apply.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	d = d.RoundBank(record.AmountScale)
	if !d.Shift(record.AmountScale).BigInt().IsInt64() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, s)
	}
	return d, nil
}
