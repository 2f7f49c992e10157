/**
 * Statement line items
 *
 * An Item is one balance-sheet row: a label and either no values or exactly
 * two, one per reporting period. Values keep their left-to-right order on
 * the page; CurrentYear marks which column is the current period.
 */

package statement

import (
	"fmt"
	"strings"

	"github.com/ONSBigData/parsing-company-accounts/internal/config"
)

// Strategy names recorded on items.
const (
	SourceBand      = "band"
	SourceExactWord = "exact-word"
	SourceAligner   = "keyword-aligner"
	SourceLookup    = "band-lookup"
)

// Value is one numeric column of a line item, bound to the OCR word it came
// from.
type Value struct {
	Amount      float64 `json:"amount"`
	Confidence  float64 `json:"confidence"`
	Left        int     `json:"left"`
	Text        string  `json:"text"`
	CurrentYear bool    `json:"current_year"`
}

// Item is one reconstructed balance-sheet row.
type Item struct {
	Label      string  `json:"label"`
	Values     []Value `json:"values"`
	SourceLine string  `json:"source_line"`
	Phrase     string  `json:"phrase,omitempty"`
	PageID     int     `json:"page_id"`
	Top        int     `json:"top"`
	Strategy   string  `json:"strategy"`
}

// Current returns the current-period value, if any.
func (i Item) Current() (Value, bool) {
	for _, v := range i.Values {
		if v.CurrentYear {
			return v, true
		}
	}
	return Value{}, false
}

// Prior returns the prior-period value, if any.
func (i Item) Prior() (Value, bool) {
	for _, v := range i.Values {
		if !v.CurrentYear {
			return v, true
		}
	}
	return Value{}, false
}

// ColumnOrder says which of the two value columns holds the current period.
type ColumnOrder int

const (
	// CurrentFirst puts the current period in the left column, the usual
	// layout of UK filed accounts.
	CurrentFirst ColumnOrder = iota
	// PriorFirst puts the prior period in the left column.
	PriorFirst
)

func (o ColumnOrder) String() string {
	if o == PriorFirst {
		return config.ColumnOrderPriorFirst
	}
	return config.ColumnOrderCurrentFirst
}

// ParseColumnOrder maps a COLUMN_ORDER value to a ColumnOrder.
func ParseColumnOrder(s string) (ColumnOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.ColumnOrderCurrentFirst:
		return CurrentFirst, nil
	case config.ColumnOrderPriorFirst:
		return PriorFirst, nil
	default:
		return CurrentFirst, fmt.Errorf("unknown column order %q", s)
	}
}

// tag marks the current-period column on a left-to-right pair.
func (o ColumnOrder) tag(pair []Value) []Value {
	if len(pair) != 2 {
		return nil
	}
	pair[0].CurrentYear = o == CurrentFirst
	pair[1].CurrentYear = o == PriorFirst
	return pair
}
