package statement

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ONSBigData/parsing-company-accounts/internal/layout"
)

// Finance-line grammar, applied to a band's cleaned text:
//
//	line    := label WS number WS number WS? "."? WS? EOL
//	label   := any text, as short as possible
//	number  := "("? "-"? DIGIT (DIGIT | ",")* ("." DIGIT+)? ")"?
//
// The label is the shortest prefix that still leaves two number tokens at
// the end of the line, so note references inside the label ("Debtors 5
// 1,234 1,100") stay in the label and are stripped later.
const numberToken = `\(?-?\d[\d,]*(?:\.\d+)?\)?`

var financeLine = regexp.MustCompile(
	`^(?P<label>.*?)\s+(?P<left>` + numberToken + `)\s+(?P<right>` + numberToken + `)\s*\.?\s*$`,
)

var (
	labelGroup = financeLine.SubexpIndex("label")
	leftGroup  = financeLine.SubexpIndex("left")
	rightGroup = financeLine.SubexpIndex("right")
)

// LineMatch holds the captures of a finance line.
type LineMatch struct {
	Label string
	Left  string
	Right string
}

// CleanLine normalises s, so typographic dashes and the minus sign read as
// "-", then drops every character outside the finance-line alphabet:
// letters, digits, whitespace, period, plus sign and the number-token
// characters "(", ")", "-" and ",". Currency symbols and OCR debris go.
func CleanLine(s string) string {
	var sb strings.Builder
	for _, r := range layout.Normalize(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		case strings.ContainsRune(".+()-,", r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// MatchLine applies the finance-line grammar to cleaned text.
func MatchLine(cleaned string) (LineMatch, bool) {
	m := financeLine.FindStringSubmatch(cleaned)
	if m == nil {
		return LineMatch{}, false
	}
	return LineMatch{Label: m[labelGroup], Left: m[leftGroup], Right: m[rightGroup]}, true
}

// CleanLabel strips digits from a captured label and collapses whitespace.
func CleanLabel(label string) string {
	label = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, label)
	return strings.Join(strings.Fields(label), " ")
}

// startsLowercase reports whether a cleaned label opens with an ASCII
// lowercase letter, the mark of a label wrapped from the row above.
func startsLowercase(s string) bool {
	return s != "" && s[0] >= 'a' && s[0] <= 'z'
}
