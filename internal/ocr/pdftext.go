/**
 * PDF text layer reader
 *
 * Born-digital accounts carry their text as positioned glyph runs. Those runs
 * are regrouped into rows and words and projected onto a top-left pixel grid
 * so they flow through the same pipeline as OCR output.
 */

package ocr

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// pdfScale maps PDF points (72 dpi) to the pixel grid (144 dpi).
const pdfScale = 2.0

// PDFTextWords extracts word records from every page of a PDF's text layer.
// Pages without text contribute only their page record. The result is empty
// when the document has no text layer at all.
func PDFTextWords(data []byte) (words []Word, err error) {
	defer func() {
		if r := recover(); r != nil {
			words, err = nil, fmt.Errorf("malformed PDF text layer: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	found := false
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		texts := p.Content().Text
		height := mediaBoxHeight(p, texts)
		words = append(words, Word{
			PageID:     i,
			Level:      LevelPage,
			Width:      int(math.Ceil(mediaBoxWidth(p, texts) * pdfScale)),
			Height:     int(math.Ceil(height * pdfScale)),
			Confidence: -1,
		})
		pageWords := glyphWords(texts, i, height)
		if len(pageWords) > 0 {
			found = true
		}
		words = append(words, pageWords...)
	}
	if !found {
		return nil, nil
	}
	return words, nil
}

func mediaBoxHeight(p pdf.Page, texts []pdf.Text) float64 {
	box := p.V.Key("MediaBox")
	if box.Kind() == pdf.Array && box.Len() == 4 {
		return box.Index(3).Float64() - box.Index(1).Float64()
	}
	var maxY float64
	for _, t := range texts {
		maxY = math.Max(maxY, t.Y+t.FontSize)
	}
	return maxY
}

func mediaBoxWidth(p pdf.Page, texts []pdf.Text) float64 {
	box := p.V.Key("MediaBox")
	if box.Kind() == pdf.Array && box.Len() == 4 {
		return box.Index(2).Float64() - box.Index(0).Float64()
	}
	var maxX float64
	for _, t := range texts {
		maxX = math.Max(maxX, t.X+t.W)
	}
	return maxX
}

type glyphRow struct {
	y      float64
	size   float64
	glyphs []pdf.Text
}

// glyphWords groups glyph runs into rows by baseline, then splits rows into
// words at spaces or gaps wider than a quarter of the font size.
func glyphWords(texts []pdf.Text, pageID int, pageHeight float64) []Word {
	var rows []*glyphRow
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		var row *glyphRow
		for _, r := range rows {
			if math.Abs(r.y-t.Y) <= math.Max(r.size, t.FontSize)*0.5 {
				row = r
				break
			}
		}
		if row == nil {
			row = &glyphRow{y: t.Y, size: t.FontSize}
			rows = append(rows, row)
		}
		row.glyphs = append(row.glyphs, t)
		row.size = math.Max(row.size, t.FontSize)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	var words []Word
	for li, row := range rows {
		sort.SliceStable(row.glyphs, func(i, j int) bool { return row.glyphs[i].X < row.glyphs[j].X })

		var sb strings.Builder
		var x0, x1 float64
		wordNum := 0
		flush := func() {
			text := strings.TrimSpace(sb.String())
			sb.Reset()
			if text == "" {
				return
			}
			wordNum++
			top := pageHeight - row.y - row.size*0.8
			words = append(words, Word{
				PageID:     pageID,
				Level:      LevelWord,
				BlockNum:   1,
				ParNum:     1,
				LineNum:    li + 1,
				WordNum:    wordNum,
				Left:       int(math.Round(x0 * pdfScale)),
				Top:        int(math.Round(top * pdfScale)),
				Width:      int(math.Max(1, math.Round((x1-x0)*pdfScale))),
				Height:     int(math.Max(1, math.Round(row.size*pdfScale))),
				Confidence: 100,
				Text:       text,
			})
		}

		for _, g := range row.glyphs {
			gap := g.X - x1
			if sb.Len() > 0 && gap > row.size*0.25 {
				flush()
			}
			x1 = g.X + g.W
			for _, r := range g.S {
				if unicode.IsSpace(r) {
					flush()
					continue
				}
				if sb.Len() == 0 {
					x0 = g.X
				}
				sb.WriteRune(r)
			}
		}
		flush()
	}
	return words
}
