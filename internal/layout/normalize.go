package layout

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var punctuation = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-", "−", "-",
)

// Normalize applies NFKC so ligatures and full-width forms read as plain
// text, and maps typographic quotes and dashes to ASCII.
func Normalize(s string) string {
	return punctuation.Replace(norm.NFKC.String(s))
}

// Fold normalises s and case-folds it for caseless comparison.
func Fold(s string) string {
	// Casers are stateful, so each call gets its own.
	return cases.Fold().String(Normalize(s))
}
