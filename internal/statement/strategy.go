package statement

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/layout"
	"github.com/ONSBigData/parsing-company-accounts/internal/logging"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
)

// Strategy is one way of locating a named statistic. Find reports failure
// as an error instead of panicking.
type Strategy interface {
	Name() string
	Find(doc *Doc, phrase string) (Item, error)
}

// ExactWord matches a single word equal to the phrase and takes the two
// rightmost words level with it. Multi-word phrases never match a single
// word, so they fall through to later strategies.
type ExactWord struct{}

// Name implements Strategy.
func (ExactWord) Name() string { return SourceExactWord }

// Find implements Strategy.
func (ExactWord) Find(doc *Doc, phrase string) (Item, error) {
	needle := layout.Fold(strings.TrimSpace(phrase))
	var lastErr error
	for _, w := range doc.Words {
		if !w.IsWord() || layout.Fold(w.Text) != needle {
			continue
		}

		var aligned []ocr.Word
		for _, o := range doc.Words {
			if o.PageID == w.PageID && o.IsWord() && o.Text != "" &&
				o.OverlapsRows(w.Top, w.Bottom) && o.Left > w.Left {
				aligned = append(aligned, o)
			}
		}
		sort.SliceStable(aligned, func(i, j int) bool { return aligned[i].Left < aligned[j].Left })
		words, ok := rightmostPair(aligned)
		if !ok {
			lastErr = fmt.Errorf("fewer than two words level with %q on page %d", w.Text, w.PageID)
			continue
		}
		if !words[0].HasValue || !words[1].HasValue {
			lastErr = fmt.Errorf("words level with %q on page %d are not numeric", w.Text, w.PageID)
			continue
		}
		pair := valuesOf(words)
		return Item{
			Label:      w.Text,
			Values:     doc.Order.tag(pair),
			SourceLine: w.Text + " " + pair[0].Text + " " + pair[1].Text,
			Phrase:     phrase,
			PageID:     w.PageID,
			Top:        w.Top,
			Strategy:   SourceExactWord,
		}, nil
	}
	if lastErr != nil {
		return Item{}, lastErr
	}
	return Item{}, apperrors.NewStatisticNotFoundError(phrase)
}

// BandLookup searches the items already extracted from bands for a label
// containing the phrase.
type BandLookup struct{}

// Name implements Strategy.
func (BandLookup) Name() string { return SourceLookup }

// Find implements Strategy.
func (BandLookup) Find(doc *Doc, phrase string) (Item, error) {
	needle := layout.Fold(strings.TrimSpace(phrase))
	for _, it := range doc.Items {
		if len(it.Values) == 2 && strings.Contains(layout.Fold(it.Label), needle) {
			it.Phrase = phrase
			it.Strategy = SourceLookup
			return it, nil
		}
	}
	return Item{}, apperrors.NewStatisticNotFoundError(phrase)
}

// DefaultStrategies is the search order for named statistics.
func DefaultStrategies() []Strategy {
	return []Strategy{ExactWord{}, Aligner{}, BandLookup{}}
}

// Attempt records one failed strategy try.
type Attempt struct {
	Strategy string `json:"strategy"`
	Phrase   string `json:"phrase"`
	Reason   string `json:"reason"`
}

// Coordinator tries strategies in priority order and keeps the first
// success. Every failure is logged and returned, never swallowed.
type Coordinator struct {
	strategies []Strategy
	logger     *logging.Logger
}

// NewCoordinator creates a coordinator; with no strategies the defaults
// are used.
func NewCoordinator(logger *logging.Logger, strategies ...Strategy) *Coordinator {
	if logger == nil {
		logger = logging.NewLogger("StatisticSearch")
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Coordinator{strategies: strategies, logger: logger}
}

// Find locates a statistic using each phrase in turn with every strategy.
func (c *Coordinator) Find(doc *Doc, phrases ...string) (Item, []Attempt, error) {
	var attempts []Attempt
	for _, phrase := range phrases {
		for _, s := range c.strategies {
			item, err := c.try(s, doc, phrase)
			if err == nil {
				c.logger.Debug("Statistic located", "strategy", s.Name(), "phrase", phrase, "page", item.PageID)
				return item, attempts, nil
			}
			attempts = append(attempts, Attempt{Strategy: s.Name(), Phrase: phrase, Reason: err.Error()})
			c.logger.Info("Strategy failed", "strategy", s.Name(), "phrase", phrase, "reason", err)
		}
	}
	return Item{}, attempts, apperrors.NewStatisticNotFoundError(strings.Join(phrases, " | "))
}

func (c *Coordinator) try(s Strategy, doc *Doc, phrase string) (item Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Find(doc, phrase)
}
