// Package export renders extraction results as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ONSBigData/parsing-company-accounts/internal/processor"
	"github.com/ONSBigData/parsing-company-accounts/internal/voting"
)

// Sheet names of the exported workbook.
const (
	SheetLineItems  = "line_items"
	SheetStatistics = "statistics"
	SheetSummary    = "summary"
)

var (
	lineItemHeader = []interface{}{
		"job_id", "filename", "statistic", "label",
		"value_current", "value_prior", "year_current", "year_prior", "unit",
		"confidence_current", "confidence_prior", "page_id", "strategy", "source_line",
	}
	statisticHeader = []interface{}{
		"job_id", "statistic", "found", "label",
		"value_current", "value_prior", "page_id", "strategy", "attempts",
	}
	summaryHeader = []interface{}{
		"job_id", "filename", "source", "balance_sheet_pages", "unit",
		"year_current", "year_prior", "items", "statistics_found", "unmatched_bands",
		"failures", "processing_ms",
	}
)

// WriteWorkbook writes one workbook covering every result to w. Values that
// were not extracted, and unresolved units or years, are left blank.
func WriteWorkbook(w io.Writer, results []*processor.ProcessResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetLineItems); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetStatistics, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	sheets := map[string]*sheetWriter{
		SheetLineItems:  {file: f, name: SheetLineItems},
		SheetStatistics: {file: f, name: SheetStatistics},
		SheetSummary:    {file: f, name: SheetSummary},
	}
	sheets[SheetLineItems].row(lineItemHeader)
	sheets[SheetStatistics].row(statisticHeader)
	sheets[SheetSummary].row(summaryHeader)

	for _, res := range results {
		if res == nil || res.Extraction == nil {
			continue
		}
		for _, rec := range res.Records {
			sheets[SheetLineItems].row(lineItemRow(res, rec))
		}
		for _, stat := range res.Statistics {
			sheets[SheetStatistics].row(statisticRow(res.JobID, stat))
		}
		sheets[SheetSummary].row(summaryRow(res))
	}

	for _, s := range sheets {
		if s.err != nil {
			return s.err
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type sheetWriter struct {
	file *excelize.File
	name string
	next int
	err  error
}

// row appends values as the next row, keeping the first error.
func (s *sheetWriter) row(values []interface{}) {
	if s.err != nil {
		return
	}
	s.next++
	cell, err := excelize.CoordinatesToCellName(1, s.next)
	if err == nil {
		err = s.file.SetSheetRow(s.name, cell, &values)
	}
	if err != nil {
		s.err = fmt.Errorf("failed to write %s row %d: %w", s.name, s.next, err)
	}
}

func lineItemRow(res *processor.ProcessResult, rec voting.Record) []interface{} {
	cur, prior, confCur, confPrior := values(rec)
	yearCur, yearPrior := years(rec)
	return []interface{}{
		res.JobID, res.Filename, rec.Statistic, rec.Label,
		cur, prior, yearCur, yearPrior, unit(rec),
		confCur, confPrior, rec.PageID, rec.Strategy, rec.SourceLine,
	}
}

func statisticRow(jobID string, stat processor.StatisticResult) []interface{} {
	row := []interface{}{jobID, stat.Name, stat.Found, nil, nil, nil, nil, nil, attempts(stat)}
	if stat.Record != nil {
		cur, prior, _, _ := values(*stat.Record)
		row[3], row[4], row[5] = stat.Record.Label, cur, prior
		row[6], row[7] = stat.Record.PageID, stat.Record.Strategy
	}
	return row
}

func summaryRow(res *processor.ProcessResult) []interface{} {
	found := 0
	for _, s := range res.Statistics {
		if s.Found {
			found++
		}
	}
	pages := make([]string, len(res.Pages))
	for i, p := range res.Pages {
		pages[i] = fmt.Sprint(p)
	}
	var unitToken, yearCur, yearPrior interface{}
	if res.Unit.Resolved() {
		unitToken = res.Unit.Token
	}
	if res.Years.Resolved() {
		yearCur, yearPrior = res.Years.Current, res.Years.Prior
	}
	return []interface{}{
		res.JobID, res.Filename, res.Source, strings.Join(pages, ","), unitToken,
		yearCur, yearPrior, len(res.Records), found, res.Unmatched,
		len(res.Failures), res.ProcessingMs,
	}
}

func values(rec voting.Record) (cur, prior, confCur, confPrior interface{}) {
	if !rec.HasValues {
		return nil, nil, nil, nil
	}
	return rec.ValueCurrent, rec.ValuePrior, rec.ConfidenceCurrent, rec.ConfidencePrior
}

func years(rec voting.Record) (cur, prior interface{}) {
	if !rec.YearResolved {
		return nil, nil
	}
	return rec.YearCurrent, rec.YearPrior
}

func unit(rec voting.Record) interface{} {
	if !rec.UnitResolved {
		return nil
	}
	return rec.Unit
}

func attempts(stat processor.StatisticResult) string {
	parts := make([]string, len(stat.Attempts))
	for i, a := range stat.Attempts {
		parts[i] = fmt.Sprintf("%s(%q): %s", a.Strategy, a.Phrase, a.Reason)
	}
	return strings.Join(parts, "; ")
}
