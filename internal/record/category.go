package record

import "fmt"

// SourceCategory tags which PGFN extract a record came from. The three
// extracts share most columns but differ in arity and in which optional
// fields they carry.
type SourceCategory int

const (
	FGTS SourceCategory = iota + 1
	SocialSecurity
	General
)

// Categories lists every category in load order.
var Categories = []SourceCategory{FGTS, SocialSecurity, General}

// String returns the provenance tag stored in arquivo_origem.
func (c SourceCategory) String() string {
	switch c {
	case FGTS:
		return "FGTS"
	case SocialSecurity:
		return "PREVIDENCIARIO"
	case General:
		return "GERAL"
	default:
		return fmt.Sprintf("SourceCategory(%d)", int(c))
	}
}

// Dir is the directory under entrada/ holding the category's files.
func (c SourceCategory) Dir() string {
	switch c {
	case FGTS:
		return "FGTS"
	case SocialSecurity:
		return "Previdenciario"
	case General:
		return "Nao_Previdenciario"
	default:
		return ""
	}
}

// Arity is the exact number of ';'-separated fields per line.
func (c SourceCategory) Arity() int {
	switch c {
	case FGTS:
		return 15
	case SocialSecurity, General:
		return 13
	default:
		return 0
	}
}

// Valid reports whether c is one of the known categories.
func (c SourceCategory) Valid() bool {
	return c == FGTS || c == SocialSecurity || c == General
}

// ParseCategory maps a stored tag back to its category.
func ParseCategory(tag string) (SourceCategory, error) {
	for _, c := range Categories {
		if c.String() == tag {
			return c, nil
		}
	}
	return 0, fmt.Errorf("record: unknown source category %q", tag)
}
