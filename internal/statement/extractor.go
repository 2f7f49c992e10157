package statement

import (
	"fmt"
	"strings"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/layout"
	"github.com/ONSBigData/parsing-company-accounts/internal/logging"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
)

// Extractor turns row bands into line items using the finance-line grammar.
type Extractor struct {
	logger *logging.Logger
}

// NewExtractor creates an extractor; a nil logger gets a default one.
func NewExtractor(logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewLogger("StatementExtractor")
	}
	return &Extractor{logger: logger}
}

// Years are the document's voted reporting years. Zero means unknown.
type Years struct {
	Current int
	Prior   int
}

// isHeader reports whether the pair is exactly the two reporting years,
// as on a "Notes 2019 2018" column header row.
func (y Years) isHeader(values []Value) bool {
	if y.Current == 0 || y.Prior == 0 || len(values) != 2 {
		return false
	}
	a, b := values[0].Amount, values[1].Amount
	cur, prior := float64(y.Current), float64(y.Prior)
	return (a == cur && b == prior) || (a == prior && b == cur)
}

// Extraction is the outcome of extracting one page's bands.
type Extraction struct {
	Items     []Item
	Failures  []*apperrors.ProcessingError
	Unmatched int
	Headers   int
}

// Extract reconstructs one item per band matching the grammar. Bands that
// do not match are counted and skipped, as are year header rows. A band
// that matches but cannot be reconstructed is recorded as a failure; it
// never stops the other bands.
func (e *Extractor) Extract(bands []layout.Band, order ColumnOrder, years Years) Extraction {
	var out Extraction
	for i := range bands {
		item, perr := e.extractBand(bands, i, order)
		switch {
		case perr == nil && years.isHeader(item.Values):
			out.Headers++
			e.logger.Debug("Year header skipped", "page", bands[i].PageID, "top", bands[i].Top, "line", item.SourceLine)
		case perr == nil:
			out.Items = append(out.Items, item)
		case perr.Code == apperrors.ErrorNoPatternMatch:
			out.Unmatched++
			e.logger.Debug("Band skipped", "page", bands[i].PageID, "top", bands[i].Top, "reason", perr.Message)
		default:
			out.Failures = append(out.Failures, perr)
			e.logger.Warn("Band extraction failed", "page", bands[i].PageID, "top", bands[i].Top, "error", perr)
		}
	}
	return out
}

func (e *Extractor) extractBand(bands []layout.Band, i int, order ColumnOrder) (item Item, perr *apperrors.ProcessingError) {
	band := bands[i]
	raw := band.RawText()

	defer func() {
		if r := recover(); r != nil {
			item = Item{}
			perr = apperrors.NewExtractionFailedError(band.PageID, raw, fmt.Errorf("panic: %v", r))
		}
	}()

	m, ok := MatchLine(CleanLine(raw))
	if !ok {
		return Item{}, apperrors.NewNoPatternMatchError(band.PageID, raw)
	}

	label := CleanLabel(m.Label)
	source := raw
	if startsLowercase(label) {
		if i == 0 {
			return Item{}, apperrors.NewExtractionFailedError(band.PageID, raw,
				fmt.Errorf("continuation label %q on the first band of the page", label))
		}
		prev := strings.TrimSpace(bands[i-1].RawText())
		label = strings.TrimSpace(prev + " " + label)
		source = prev + " " + raw
	}

	values, err := bindValues(band.Words, m.Left, m.Right)
	if err != nil {
		return Item{}, apperrors.NewExtractionFailedError(band.PageID, raw, err)
	}

	return Item{
		Label:      label,
		Values:     order.tag(values),
		SourceLine: source,
		PageID:     band.PageID,
		Top:        band.Top,
		Strategy:   SourceBand,
	}, nil
}

// bindValues finds the words that produced the two number tokens, scanning
// from the right, and takes each value's confidence from its own word.
func bindValues(words []ocr.Word, left, right string) ([]Value, error) {
	ri := lastTokenWord(words, len(words), right)
	if ri < 0 {
		return nil, fmt.Errorf("no word carries token %q", right)
	}
	li := lastTokenWord(words, ri, left)
	if li < 0 {
		return nil, fmt.Errorf("no word carries token %q", left)
	}

	pair := make([]Value, 0, 2)
	for _, idx := range []int{li, ri} {
		w := words[idx]
		token := wordToken(w.Text)
		amount, ok := ocr.ParseNumeric(token)
		if !ok {
			return nil, fmt.Errorf("token %q is not numeric", token)
		}
		pair = append(pair, Value{
			Amount:     amount,
			Confidence: w.Confidence,
			Left:       w.Left,
			Text:       w.Text,
		})
	}
	return pair, nil
}

// wordToken is a word's text as the grammar sees it, less a trailing
// full stop.
func wordToken(text string) string {
	return strings.TrimRight(strings.TrimSpace(CleanLine(text)), ".")
}

// lastTokenWord returns the index of the last word before end whose token
// equals token, or -1.
func lastTokenWord(words []ocr.Word, end int, token string) int {
	for i := end - 1; i >= 0; i-- {
		if wordToken(words[i].Text) == token {
			return i
		}
	}
	return -1
}
