package ocr

import (
	"math"
	"sort"
	"strings"
)

// Enrich returns a copy of words with derived geometry and numeric values.
// SpaceFromLeft is defined only when the previous record belongs to the same
// line and the word is not the first of that line.
func Enrich(words []Word) []Word {
	out := make([]Word, len(words))
	for i, w := range words {
		w.Text = cleanToken(w.Text)
		w.Right = w.Left + w.Width
		w.Bottom = w.Top + w.Height
		w.CenterX = float64(w.Left) + float64(w.Width)/2
		w.CenterY = float64(w.Top) + float64(w.Height)/2
		w.Area = w.Width * w.Height
		w.Value, w.HasValue = ParseNumeric(w.Text)

		w.SpaceFromLeft, w.HasSpace = 0, false
		if i > 0 && w.WordNum > 1 {
			prev := out[i-1]
			if prev.Key() == w.Key() && prev.IsWord() {
				w.SpaceFromLeft = w.Left - prev.Right
				w.HasSpace = true
			}
		}
		out[i] = w
	}
	return out
}

// cleanToken maps the empty markers some exporters write for missing text
// to the empty string.
func cleanToken(s string) string {
	t := strings.TrimSpace(s)
	if strings.EqualFold(t, "nan") {
		return ""
	}
	return t
}

// Spacing summarises horizontal gaps between neighbouring words.
type Spacing struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
}

// SpacingStats computes document-wide word spacing statistics over enriched
// words.
func SpacingStats(words []Word) Spacing {
	var gaps []float64
	for _, w := range words {
		if w.HasSpace {
			gaps = append(gaps, float64(w.SpaceFromLeft))
		}
	}
	s := Spacing{Count: len(gaps)}
	if len(gaps) == 0 {
		return s
	}

	var sum float64
	for _, g := range gaps {
		sum += g
	}
	s.Mean = sum / float64(len(gaps))

	sort.Float64s(gaps)
	mid := len(gaps) / 2
	if len(gaps)%2 == 0 {
		s.Median = (gaps[mid-1] + gaps[mid]) / 2
	} else {
		s.Median = gaps[mid]
	}

	if len(gaps) > 1 {
		var ss float64
		for _, g := range gaps {
			ss += (g - s.Mean) * (g - s.Mean)
		}
		s.StdDev = math.Sqrt(ss / float64(len(gaps)-1))
	}
	return s
}
