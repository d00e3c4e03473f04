package ddl

import "testing"

func TestMapType(t *testing.T) {
	t.Parallel()

	for kind, want := range map[string]string{
		"int":      "BIGINT",
		" CENTS ":  "BIGINT",
		"money":    "NUMERIC(18,2)",
		"document": "TEXT",
		"":         "TEXT",
	} {
		if got := MapType(kind); got != want {
			t.Errorf("MapType(%q) = %q, want %q", kind, got, want)
		}
	}
}
