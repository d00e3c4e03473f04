package export

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NumberFormat renders decimals for the CSV exports. The zero value is not
// useful; start from DefaultNumberFormat.
type NumberFormat struct {
	DecimalSep  string
	GroupSep    string
	Grouping    bool  // insert GroupSep every three integer digits
	MaxFraction int32 // fraction digits kept after half-even rounding
}

// DefaultNumberFormat is the pt-BR layout: ',' decimals, '.' grouping (off),
// up to three fraction digits.
func DefaultNumberFormat() NumberFormat {
	return NumberFormat{DecimalSep: ",", GroupSep: ".", MaxFraction: 3}
}

// Format rounds d half-even to MaxFraction digits, drops trailing zeros and
// lays it out with the configured separators. The integer part always has
// at least one digit.
func (f NumberFormat) Format(d decimal.Decimal) string {
	s := d.RoundBank(f.MaxFraction).String()

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if f.Grouping && f.GroupSep != "" {
		intPart = group(intPart, f.GroupSep)
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(intPart)
	if frac != "" {
		b.WriteString(f.DecimalSep)
		b.WriteString(frac)
	}
	return b.String()
}

func group(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
