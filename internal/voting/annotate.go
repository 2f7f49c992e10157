package voting

import (
	"github.com/ONSBigData/parsing-company-accounts/internal/statement"
)

// Record is a line item merged with the document unit and years.
type Record struct {
	Statistic         string  `json:"statistic,omitempty"`
	Label             string  `json:"label"`
	ValueCurrent      float64 `json:"value_current"`
	ValuePrior        float64 `json:"value_prior"`
	YearCurrent       int     `json:"year_current"`
	YearPrior         int     `json:"year_prior"`
	Unit              string  `json:"unit"`
	ConfidenceCurrent float64 `json:"confidence_current"`
	ConfidencePrior   float64 `json:"confidence_prior"`
	SourceLine        string  `json:"source_line"`
	Phrase            string  `json:"phrase,omitempty"`
	PageID            int     `json:"page_id"`
	Strategy          string  `json:"strategy"`
	HasValues         bool    `json:"has_values"`
	YearResolved      bool    `json:"year_resolved"`
	UnitResolved      bool    `json:"unit_resolved"`
}

// Annotate attaches the voted unit and years to each item. An unresolved
// vote leaves the field empty and its resolved flag false.
func Annotate(items []statement.Item, unit UnitVote, years YearVote) []Record {
	records := make([]Record, 0, len(items))
	for _, it := range items {
		records = append(records, AnnotateItem(it, unit, years))
	}
	return records
}

// AnnotateItem annotates a single item.
func AnnotateItem(it statement.Item, unit UnitVote, years YearVote) Record {
	r := Record{
		Label:        it.Label,
		SourceLine:   it.SourceLine,
		Phrase:       it.Phrase,
		PageID:       it.PageID,
		Strategy:     it.Strategy,
		UnitResolved: unit.Resolved(),
		YearResolved: years.Resolved(),
	}
	if r.UnitResolved {
		r.Unit = unit.Token
	}
	if r.YearResolved {
		r.YearCurrent, r.YearPrior = years.Current, years.Prior
	}

	cur, okCur := it.Current()
	prior, okPrior := it.Prior()
	if okCur && okPrior {
		r.HasValues = true
		r.ValueCurrent, r.ConfidenceCurrent = cur.Amount, cur.Confidence
		r.ValuePrior, r.ConfidencePrior = prior.Amount, prior.Confidence
	}
	return r
}
