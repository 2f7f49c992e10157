package layout

import (
	"sort"
	"strings"

	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
)

// DefaultHeightDivisor rejects words taller than a twentieth of the page.
const DefaultHeightDivisor = 20

// Band is a horizontal strip of a page holding one visual table row.
// Top and Bottom are inclusive pixel rows.
type Band struct {
	PageID int        `json:"page_id"`
	Top    int        `json:"top"`
	Bottom int        `json:"bottom"`
	Left   int        `json:"left"`
	Right  int        `json:"right"`
	Words  []ocr.Word `json:"-"`
}

// RawText joins the band's words left to right.
func (b Band) RawText() string {
	parts := make([]string, 0, len(b.Words))
	for _, w := range b.Words {
		if w.Text != "" {
			parts = append(parts, w.Text)
		}
	}
	return strings.Join(parts, " ")
}

// BandConfig tunes noise filtering for band detection.
type BandConfig struct {
	HeightDivisor int
}

// DetectBands finds the row bands of a page from the vertical occupancy of
// its words, independent of the OCR engine's own line segmentation. Bands
// span the full page width and are returned top to bottom.
func DetectBands(page ocr.Page, cfg BandConfig) []Band {
	divisor := cfg.HeightDivisor
	if divisor <= 0 {
		divisor = DefaultHeightDivisor
	}
	if page.Height <= 0 {
		return nil
	}
	maxHeight := float64(page.Height) / float64(divisor)

	var kept []ocr.Word
	for _, w := range page.Words {
		if !w.IsWord() || isNoise(w.Text) || float64(w.Height) > maxHeight {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return nil
	}

	// Difference array over rows 0..Height: +1 at top, -1 past bottom.
	diff := make([]int, page.Height+2)
	for _, w := range kept {
		top, bottom := max(w.Top, 0), min(w.Bottom, page.Height)
		if top > bottom {
			continue
		}
		diff[top]++
		diff[bottom+1]--
	}

	var bands []Band
	occupied, start := 0, -1
	for i := 0; i <= page.Height; i++ {
		occupied += diff[i]
		switch {
		case occupied > 0 && start < 0:
			start = i
		case occupied == 0 && start >= 0:
			bands = appendBand(bands, page, start, i-1)
			start = -1
		}
	}
	if start >= 0 {
		bands = appendBand(bands, page, start, page.Height)
	}

	for _, w := range kept {
		i := sort.Search(len(bands), func(i int) bool { return bands[i].Bottom >= w.Top })
		if i < len(bands) && bands[i].Top <= w.Bottom {
			bands[i].Words = append(bands[i].Words, w)
		}
	}
	for i := range bands {
		words := bands[i].Words
		sort.SliceStable(words, func(a, b int) bool { return words[a].Left < words[b].Left })
	}
	return bands
}

// appendBand drops degenerate single-row runs.
func appendBand(bands []Band, page ocr.Page, top, bottom int) []Band {
	if top >= bottom {
		return bands
	}
	return append(bands, Band{
		PageID: page.ID,
		Top:    top,
		Bottom: bottom,
		Left:   0,
		Right:  page.Width,
	})
}

func isNoise(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" || strings.EqualFold(t, "nan") {
		return true
	}
	return strings.Trim(t, "|") == ""
}
