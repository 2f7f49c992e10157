/**
 * OCR word model
 *
 * One Word per record of a Tesseract-style word table. Page, block, paragraph
 * and line records (word_num 0) are kept so page geometry can be recovered;
 * downstream stages filter them out.
 */

package ocr

import "sort"

// Tesseract TSV hierarchy levels.
const (
	LevelPage  = 1
	LevelBlock = 2
	LevelPara  = 3
	LevelLine  = 4
	LevelWord  = 5
)

// Word is one OCR record with its derived geometry.
type Word struct {
	PageID   int `json:"page_id"`
	Level    int `json:"level"`
	BlockNum int `json:"block_num"`
	ParNum   int `json:"par_num"`
	LineNum  int `json:"line_num"`
	WordNum  int `json:"word_num"`

	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`

	Confidence float64 `json:"conf"`
	Text       string  `json:"text"`

	// Set by Enrich.
	Value         float64 `json:"value,omitempty"`
	HasValue      bool    `json:"has_value,omitempty"`
	Right         int     `json:"right"`
	Bottom        int     `json:"bottom"`
	CenterX       float64 `json:"center_x"`
	CenterY       float64 `json:"center_y"`
	Area          int     `json:"area"`
	SpaceFromLeft int     `json:"space_from_left,omitempty"`
	HasSpace      bool    `json:"has_space,omitempty"`
}

// LineKey identifies the OCR line a word belongs to.
type LineKey struct {
	PageID   int
	BlockNum int
	ParNum   int
	LineNum  int
}

// Key returns the word's line key.
func (w Word) Key() LineKey {
	return LineKey{PageID: w.PageID, BlockNum: w.BlockNum, ParNum: w.ParNum, LineNum: w.LineNum}
}

// IsWord reports whether the record is a word-level record.
func (w Word) IsWord() bool {
	return w.WordNum > 0
}

// OverlapsRows reports whether the word's vertical extent intersects the
// open interval (top, bottom).
func (w Word) OverlapsRows(top, bottom int) bool {
	return w.Top < bottom && w.Bottom > top
}

// Page groups the records of one page.
type Page struct {
	ID     int
	Width  int
	Height int
	Words  []Word
}

// GroupPages splits enriched words into pages in order of first appearance.
// Page size comes from the level-1 record when one exists, otherwise from
// the furthest word extent.
func GroupPages(words []Word) []Page {
	index := make(map[int]int)
	var pages []Page
	hasSize := make(map[int]bool)

	for _, w := range words {
		i, ok := index[w.PageID]
		if !ok {
			i = len(pages)
			index[w.PageID] = i
			pages = append(pages, Page{ID: w.PageID})
		}
		p := &pages[i]
		p.Words = append(p.Words, w)

		if w.Level == LevelPage && w.Width > 0 && w.Height > 0 {
			p.Width, p.Height = w.Width, w.Height
			hasSize[w.PageID] = true
			continue
		}
		if hasSize[w.PageID] {
			continue
		}
		if r := w.Left + w.Width; r > p.Width {
			p.Width = r
		}
		if b := w.Top + w.Height; b > p.Height {
			p.Height = b
		}
	}
	return pages
}

// PageIDs returns the distinct page ids in ascending order.
func PageIDs(words []Word) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, w := range words {
		if !seen[w.PageID] {
			seen[w.PageID] = true
			ids = append(ids, w.PageID)
		}
	}
	sort.Ints(ids)
	return ids
}
