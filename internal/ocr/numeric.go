package ocr

import (
	"regexp"
	"strconv"
	"strings"
)

var plainNumber = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)$`)

var numberMarks = strings.NewReplacer(",", "", "\u2212", "-")

// ParseNumeric converts an OCR token to a number. Thousands separators are
// removed, the Unicode minus sign reads as "-" and surrounding parentheses
// are trimmed; a parenthesised value is not negated.
func ParseNumeric(text string) (float64, bool) {
	s := numberMarks.Replace(strings.TrimSpace(text))
	s = strings.Trim(s, "()")
	if !plainNumber.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsYear reports whether v is an integer inside [lo, hi].
func IsYear(v float64, lo, hi int) bool {
	if v != float64(int(v)) {
		return false
	}
	y := int(v)
	return y >= lo && y <= hi
}
