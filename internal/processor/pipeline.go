/**
 * Extraction pipeline
 *
 * Runs the pure stages over one document's word records:
 * geometry -> votes -> lines -> page classification -> per-page bands and
 * line items -> annotation -> named statistics.
 *
 * Stages never abort the document. Per-band and per-statistic failures are
 * collected on the Extraction; only context cancellation stops a run.
 */

package processor

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ONSBigData/parsing-company-accounts/internal/config"
	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/layout"
	"github.com/ONSBigData/parsing-company-accounts/internal/logging"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
	"github.com/ONSBigData/parsing-company-accounts/internal/statement"
	"github.com/ONSBigData/parsing-company-accounts/internal/voting"
)

// PipelineConfig tunes the extraction stages.
type PipelineConfig struct {
	PageConcurrency    int
	BandHeightDivisor  int
	StrictContinuation bool
	YearMin            int
	YearMax            int
	ColumnOrder        statement.ColumnOrder
}

// DefaultPipelineConfig returns the settings used when nothing is configured.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PageConcurrency:   4,
		BandHeightDivisor: layout.DefaultHeightDivisor,
		YearMin:           voting.DefaultYearMin,
		YearMax:           voting.DefaultYearMax,
		ColumnOrder:       statement.CurrentFirst,
	}
}

// PipelineConfigFrom derives pipeline settings from the worker configuration.
func PipelineConfigFrom(cfg *config.Config) (PipelineConfig, error) {
	order, err := statement.ParseColumnOrder(cfg.ColumnOrder)
	if err != nil {
		return PipelineConfig{}, err
	}
	return PipelineConfig{
		PageConcurrency:    cfg.PageConcurrency,
		BandHeightDivisor:  cfg.BandHeightDivisor,
		StrictContinuation: cfg.StrictContinuation,
		YearMin:            cfg.YearMin,
		YearMax:            cfg.YearMax,
		ColumnOrder:        order,
	}, nil
}

// StatisticResult is the outcome of searching for one named statistic.
type StatisticResult struct {
	Name     string              `json:"name"`
	Found    bool                `json:"found"`
	Record   *voting.Record      `json:"record,omitempty"`
	Attempts []statement.Attempt `json:"attempts,omitempty"`
}

// Extraction is everything the pipeline recovered from one document.
type Extraction struct {
	Records      []voting.Record   `json:"records"`
	Statistics   []StatisticResult `json:"statistics"`
	Unit         voting.UnitVote   `json:"unit"`
	Years        voting.YearVote   `json:"years"`
	Pages        []int             `json:"balance_sheet_pages"`
	PageCount    int               `json:"page_count"`
	ColumnOrders map[int]string    `json:"column_orders,omitempty"`
	Unmatched    int               `json:"unmatched_bands"`
	Spacing      ocr.Spacing       `json:"spacing"`

	Failures []*apperrors.ProcessingError `json:"-"`
	// FailureDetails mirrors Failures for serialisation.
	FailureDetails []map[string]interface{} `json:"failures,omitempty"`
}

// Pipeline runs the extraction stages with a fixed configuration.
type Pipeline struct {
	cfg         PipelineConfig
	catalogue   *config.Catalogue
	extractor   *statement.Extractor
	coordinator *statement.Coordinator
	logger      *logging.Logger
}

// NewPipeline creates a pipeline. A nil catalogue searches no statistics
// unless one is passed to Run.
func NewPipeline(cfg PipelineConfig, catalogue *config.Catalogue, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewLogger("Pipeline")
	}
	if cfg.PageConcurrency < 1 {
		cfg.PageConcurrency = 1
	}
	if cfg.BandHeightDivisor < 1 {
		cfg.BandHeightDivisor = layout.DefaultHeightDivisor
	}
	if cfg.YearMin == 0 && cfg.YearMax == 0 {
		cfg.YearMin, cfg.YearMax = voting.DefaultYearMin, voting.DefaultYearMax
	}
	return &Pipeline{
		cfg:         cfg,
		catalogue:   catalogue,
		extractor:   statement.NewExtractor(logger.With("stage", "bands")),
		coordinator: statement.NewCoordinator(logger.With("stage", "statistics")),
		logger:      logger,
	}
}

type pageOutcome struct {
	pageID int
	order  statement.ColumnOrder
	statement.Extraction
}

// Run extracts line items and statistics from raw word records. A nil
// catalogue falls back to the pipeline's own.
func (p *Pipeline) Run(ctx context.Context, words []ocr.Word, catalogue *config.Catalogue) (*Extraction, error) {
	if catalogue == nil {
		catalogue = p.catalogue
	}

	enriched := ocr.Enrich(words)
	out := &Extraction{
		Spacing:      ocr.SpacingStats(enriched),
		ColumnOrders: make(map[int]string),
	}

	// Votes run over every page, independent of what gets extracted.
	out.Unit = voting.VoteUnit(enriched)
	out.Years = voting.VoteYears(enriched, p.cfg.YearMin, p.cfg.YearMax)
	if err := out.Unit.Err(); err != nil {
		p.logger.Warn("Unit vote unresolved", "error", err)
	}
	if err := out.Years.Err(); err != nil {
		p.logger.Warn("Year vote unresolved", "error", err)
	}

	lines, sentences := p.readLines(enriched)
	out.Pages = layout.ClassifyPages(sentences)
	if len(out.Pages) == 0 {
		p.logger.Info("No balance sheet pages", "error", apperrors.NewEmptyPageClassificationError())
	}

	pages := ocr.GroupPages(enriched)
	out.PageCount = len(pages)
	selected := selectPages(pages, out.Pages)

	outcomes := make([]pageOutcome, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.PageConcurrency)
	for i, page := range selected {
		i, page := i, page
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bands := layout.DetectBands(page, layout.BandConfig{HeightDivisor: p.cfg.BandHeightDivisor})
			order := statement.DetectColumnOrder(bands, out.Years.Current, out.Years.Prior, p.cfg.ColumnOrder)
			years := statement.Years{Current: out.Years.Current, Prior: out.Years.Prior}
			outcomes[i] = pageOutcome{pageID: page.ID, order: order, Extraction: p.extractor.Extract(bands, order, years)}
			p.logger.Debug("Page extracted", "page", page.ID, "bands", len(bands), "items", len(outcomes[i].Items), "order", order)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	builder := statement.NewBuilder()
	for _, o := range outcomes {
		builder.AddPage(o.pageID, o.Items)
		out.ColumnOrders[o.pageID] = o.order.String()
		out.Unmatched += o.Unmatched
		out.Failures = append(out.Failures, o.Failures...)
	}
	items := builder.Build()
	out.Records = voting.Annotate(items, out.Unit, out.Years)

	if catalogue != nil && len(catalogue.Statistics) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc := p.searchDoc(enriched, lines, items, out)
		for _, stat := range catalogue.Statistics {
			out.Statistics = append(out.Statistics, p.findStatistic(doc, stat, out))
		}
	}

	for _, f := range out.Failures {
		out.FailureDetails = append(out.FailureDetails, f.ToMap())
	}
	return out, nil
}

// readLines aggregates enriched words into lines and the stitched sentence
// lines used for page classification.
func (p *Pipeline) readLines(enriched []ocr.Word) (lines, sentences []layout.Line) {
	lines = layout.AggregateLines(enriched)
	merged := layout.MergeContinuations(lines, layout.LineConfig{StrictContinuation: p.cfg.StrictContinuation})
	return lines, layout.SentenceLines(merged)
}

// PageSentences lists the sentence lines of one candidate page.
type PageSentences struct {
	PageID    int      `json:"page_id"`
	Sentences []string `json:"sentences"`
}

// Classification is the page-level view of a document.
type Classification struct {
	Pages      []int            `json:"balance_sheet_pages"`
	PageCount  int              `json:"page_count"`
	Candidates []PageSentences  `json:"candidates"`
	Matches    map[string][]int `json:"matches,omitempty"`
}

// Classify reports the balance sheet pages of words with their sentence
// lines, and the pages mentioning each of phrases.
func (p *Pipeline) Classify(words []ocr.Word, phrases ...string) *Classification {
	enriched := ocr.Enrich(words)
	lines, sentences := p.readLines(enriched)
	c := &Classification{
		Pages:     layout.ClassifyPages(sentences),
		PageCount: len(ocr.GroupPages(enriched)),
	}

	index := make(map[int]int, len(c.Pages))
	for _, id := range c.Pages {
		index[id] = len(c.Candidates)
		c.Candidates = append(c.Candidates, PageSentences{PageID: id})
	}
	for _, s := range sentences {
		if i, ok := index[s.PageID]; ok {
			c.Candidates[i].Sentences = append(c.Candidates[i].Sentences, s.Text)
		}
	}

	if len(phrases) > 0 {
		c.Matches = make(map[string][]int, len(phrases))
		for _, phrase := range phrases {
			c.Matches[phrase] = layout.FindPages(lines, phrase)
		}
	}
	return c
}

func (p *Pipeline) findStatistic(doc *statement.Doc, stat config.Statistic, out *Extraction) StatisticResult {
	res := StatisticResult{Name: stat.Name}
	item, attempts, err := p.coordinator.Find(doc, stat.Phrases...)
	res.Attempts = attempts
	if err != nil {
		p.logger.Info("Statistic not found", "statistic", stat.Name, "attempts", len(attempts))
		if perr, ok := err.(*apperrors.ProcessingError); ok {
			out.Failures = append(out.Failures, perr)
		}
		return res
	}
	rec := voting.AnnotateItem(item, out.Unit, out.Years)
	rec.Statistic = stat.Name
	res.Found = true
	res.Record = &rec
	return res
}

// searchDoc scopes statistic search to the balance sheet pages, or to the
// whole document when none were classified.
func (p *Pipeline) searchDoc(words []ocr.Word, lines []layout.Line, items []statement.Item, out *Extraction) *statement.Doc {
	doc := &statement.Doc{Items: items, Order: majorityOrder(out.ColumnOrders, p.cfg.ColumnOrder)}
	if len(out.Pages) == 0 {
		doc.Words, doc.Lines = words, lines
		return doc
	}
	keep := pageSet(out.Pages)
	for _, w := range words {
		if keep[w.PageID] {
			doc.Words = append(doc.Words, w)
		}
	}
	for _, l := range lines {
		if keep[l.PageID] {
			doc.Lines = append(doc.Lines, l)
		}
	}
	return doc
}

func pageSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// selectPages returns the classified pages in page id order.
func selectPages(pages []ocr.Page, ids []int) []ocr.Page {
	keep := pageSet(ids)
	var out []ocr.Page
	for _, pg := range pages {
		if keep[pg.ID] {
			out = append(out, pg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// majorityOrder picks the column order most pages agreed on.
func majorityOrder(orders map[int]string, fallback statement.ColumnOrder) statement.ColumnOrder {
	var current, prior int
	for _, o := range orders {
		if o == statement.PriorFirst.String() {
			prior++
		} else {
			current++
		}
	}
	switch {
	case prior > current:
		return statement.PriorFirst
	case current > prior:
		return statement.CurrentFirst
	default:
		return fallback
	}
}
