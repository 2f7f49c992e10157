/**
 * Line aggregation
 *
 * Collapses word records into OCR lines and stitches lines the OCR engine
 * split mid-sentence back together.
 */

package layout

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
)

// Line is the aggregate of the words sharing one OCR line key.
type Line struct {
	PageID    int         `json:"page_id"`
	Key       ocr.LineKey `json:"-"`
	Text      string      `json:"text"`
	Left      int         `json:"left"`
	Top       int         `json:"top"`
	Right     int         `json:"right"`
	Bottom    int         `json:"bottom"`
	Continued bool        `json:"continued"`
	Words     []ocr.Word  `json:"-"`
}

// LineConfig tunes continuation stitching.
type LineConfig struct {
	// StrictContinuation additionally refuses to stitch onto a line that
	// already ends in terminal punctuation.
	StrictContinuation bool
}

// AggregateLines groups enriched word records by line key, in order of first
// appearance. Lines without any text are dropped.
func AggregateLines(words []ocr.Word) []Line {
	index := make(map[ocr.LineKey]int)
	var groups [][]ocr.Word
	for _, w := range words {
		if !w.IsWord() {
			continue
		}
		k := w.Key()
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], w)
	}

	lines := make([]Line, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].WordNum < g[j].WordNum })
		l := Line{
			PageID: g[0].PageID,
			Key:    g[0].Key(),
			Left:   g[0].Left,
			Top:    g[0].Top,
			Right:  g[0].Right,
			Bottom: g[0].Bottom,
			Words:  g,
		}
		parts := make([]string, 0, len(g))
		for _, w := range g {
			if t := strings.TrimSpace(w.Text); t != "" && !strings.EqualFold(t, "nan") {
				parts = append(parts, t)
			}
			l.Left = min(l.Left, w.Left)
			l.Top = min(l.Top, w.Top)
			l.Right = max(l.Right, w.Right)
			l.Bottom = max(l.Bottom, w.Bottom)
		}
		l.Text = strings.Join(parts, " ")
		if l.Text == "" {
			continue
		}
		l.Continued = startsLowercase(l.Text)
		lines = append(lines, l)
	}
	return lines
}

// startsLowercase only recognises ASCII lowercase starts; continuations that
// open with a digit or punctuation are not detected.
func startsLowercase(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s[0] >= 'a' && s[0] <= 'z'
}

// MergeContinuations folds every continued line into the line before it.
// The first line never merges and lines never merge across pages.
func MergeContinuations(lines []Line, cfg LineConfig) []Line {
	out := make([]Line, 0, len(lines))
	for i, l := range lines {
		if i > 0 && l.Continued && len(out) > 0 {
			acc := &out[len(out)-1]
			if acc.PageID == l.PageID && (!cfg.StrictContinuation || !endsSentence(acc.Text)) {
				acc.Text = acc.Text + " " + l.Text
				acc.Bottom = max(acc.Bottom, l.Bottom)
				acc.Top = min(acc.Top, l.Top)
				acc.Left = min(acc.Left, l.Left)
				acc.Right = max(acc.Right, l.Right)
				acc.Words = append(append([]ocr.Word(nil), acc.Words...), l.Words...)
				continue
			}
		}
		out = append(out, l)
	}
	return out
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, ":")
}

// SentenceLines reduces merged lines to the letter-only lowercase form used
// for page classification. Lines holding any digit are dropped.
func SentenceLines(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if strings.IndexFunc(l.Text, unicode.IsDigit) >= 0 {
			continue
		}
		text := lettersOnly(Fold(l.Text))
		if text == "" {
			continue
		}
		l.Text = text
		out = append(out, l)
	}
	return out
}

func lettersOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// TwoLineWindows returns, for each line, its text joined with the text of
// the following line on the same page.
func TwoLineWindows(lines []Line) []string {
	windows := make([]string, len(lines))
	for i, l := range lines {
		windows[i] = l.Text
		if i+1 < len(lines) && lines[i+1].PageID == l.PageID {
			windows[i] = l.Text + " " + lines[i+1].Text
		}
	}
	return windows
}
