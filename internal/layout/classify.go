package layout

import (
	"regexp"
	"strings"
)

var (
	balanceSheetLine      = regexp.MustCompile(`^(abbreviated)?balancesheet`)
	financialPositionLine = regexp.MustCompile(`^statementoffin`)
)

const (
	notesPhrase     = "notestothefinancialstatements"
	statementPhrase = "statementof"
)

// ClassifyPages selects candidate balance-sheet pages from sentence lines.
// Pages opening a line with "balance sheet" or "statement of fin..." are
// included; pages mentioning the notes to the financial statements are
// excluded, as are pages mentioning any other "statement of". Page ids are
// returned in first-seen order; an empty result is valid.
func ClassifyPages(sentences []Line) []int {
	var order []int
	seen := make(map[int]bool)
	include := make(map[int]bool)
	financial := make(map[int]bool)
	notes := make(map[int]bool)
	statements := make(map[int]bool)

	for _, l := range sentences {
		if !seen[l.PageID] {
			seen[l.PageID] = true
			order = append(order, l.PageID)
		}
		switch {
		case balanceSheetLine.MatchString(l.Text):
			include[l.PageID] = true
		case financialPositionLine.MatchString(l.Text):
			include[l.PageID] = true
			financial[l.PageID] = true
		}
		if strings.Contains(l.Text, notesPhrase) {
			notes[l.PageID] = true
		}
		if strings.Contains(l.Text, statementPhrase) {
			statements[l.PageID] = true
		}
	}

	var pages []int
	for _, id := range order {
		if !include[id] || notes[id] {
			continue
		}
		if statements[id] && !financial[id] {
			continue
		}
		pages = append(pages, id)
	}
	return pages
}

// FindPages returns the pages holding a line that mentions phrase,
// caselessly, in first-seen order.
func FindPages(lines []Line, phrase string) []int {
	needle := Fold(phrase)
	var pages []int
	seen := make(map[int]bool)
	for _, l := range lines {
		if seen[l.PageID] {
			continue
		}
		if strings.Contains(Fold(l.Text), needle) {
			seen[l.PageID] = true
			pages = append(pages, l.PageID)
		}
	}
	return pages
}
