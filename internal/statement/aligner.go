package statement

import (
	"sort"
	"strings"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/layout"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
)

// Doc is the read-only view of a document that statistic strategies search.
type Doc struct {
	// Words are the enriched word records of the searched pages.
	Words []ocr.Word
	// Lines are the unmerged OCR lines of the same pages, in reading order.
	Lines []layout.Line
	// Items are the band-extracted line items.
	Items []Item
	Order ColumnOrder
}

// ParallelNumbers returns the numeric words on the same page as a region,
// overlapping its rows and lying strictly to the right of its left edge,
// ordered left to right.
func ParallelNumbers(words []ocr.Word, pageID, left, top, bottom int) []ocr.Word {
	var out []ocr.Word
	for _, w := range words {
		if w.PageID != pageID || !w.IsWord() || !w.HasValue {
			continue
		}
		if w.OverlapsRows(top, bottom) && w.Left > left {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Left < out[j].Left })
	return out
}

// rightmostPair keeps the two rightmost of a left-to-right word list.
func rightmostPair(words []ocr.Word) ([]ocr.Word, bool) {
	if len(words) < 2 {
		return nil, false
	}
	return words[len(words)-2:], true
}

func valuesOf(words []ocr.Word) []Value {
	values := make([]Value, 0, len(words))
	for _, w := range words {
		values = append(values, Value{
			Amount:     w.Value,
			Confidence: w.Confidence,
			Left:       w.Left,
			Text:       w.Text,
		})
	}
	return values
}

// Aligner locates a named statistic by its phrase when the label may wrap
// onto the next OCR line. A line matches when its two-line window contains
// the phrase and the line itself opens with the phrase's first four
// characters; the two rightmost numbers level with the line are its values.
type Aligner struct{}

// Name implements Strategy.
func (Aligner) Name() string { return SourceAligner }

// Align returns one item per matching line that has at least two numbers
// level with it.
func (Aligner) Align(doc *Doc, phrase string) []Item {
	needle := layout.Fold(strings.TrimSpace(phrase))
	if needle == "" {
		return nil
	}
	anchor := needle
	if r := []rune(needle); len(r) > 4 {
		anchor = string(r[:4])
	}

	windows := layout.TwoLineWindows(doc.Lines)
	var items []Item
	for i, line := range doc.Lines {
		if !strings.Contains(layout.Fold(windows[i]), needle) {
			continue
		}
		if !strings.HasPrefix(layout.Fold(line.Text), anchor) {
			continue
		}
		pair, ok := rightmostPair(ParallelNumbers(doc.Words, line.PageID, line.Left, line.Top, line.Bottom))
		if !ok {
			continue
		}
		items = append(items, Item{
			Label:      lineLabel(line),
			Values:     doc.Order.tag(valuesOf(pair)),
			SourceLine: windows[i],
			Phrase:     phrase,
			PageID:     line.PageID,
			Top:        line.Top,
			Strategy:   SourceAligner,
		})
	}
	return items
}

// Find implements Strategy with the first aligned item.
func (a Aligner) Find(doc *Doc, phrase string) (Item, error) {
	items := a.Align(doc, phrase)
	if len(items) == 0 {
		return Item{}, apperrors.NewStatisticNotFoundError(phrase)
	}
	return items[0], nil
}

// lineLabel is the line text without its numeric words.
func lineLabel(line layout.Line) string {
	parts := make([]string, 0, len(line.Words))
	for _, w := range line.Words {
		if w.Text != "" && !w.HasValue {
			parts = append(parts, w.Text)
		}
	}
	if len(parts) == 0 {
		return CleanLabel(line.Text)
	}
	return CleanLabel(strings.Join(parts, " "))
}
