/**
 * Document-wide voting
 *
 * The currency unit and the two reporting years are inferred once per
 * document by counting tokens across every page, independent of which rows
 * were extracted.
 */

package voting

import (
	"regexp"
	"sort"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
)

// Default year window; values outside it are addresses, page numbers and
// misreads more often than years.
const (
	DefaultYearMin = 2000
	DefaultYearMax = 2050
)

// unitToken matches tokens opening with a currency symbol or a magnitude
// word. "£m", "£k", "$m" and "$k" are covered by the symbol branch.
var unitToken = regexp.MustCompile(`^(?:[£$]|(?i:million|thousand))`)

// UnitVote is the most frequent unit token of a document.
type UnitVote struct {
	Token string         `json:"token"`
	Count int            `json:"count"`
	Tally map[string]int `json:"tally,omitempty"`
}

// Resolved reports whether any unit token was found.
func (u UnitVote) Resolved() bool { return u.Token != "" }

// Err describes an unresolved vote, or returns nil.
func (u UnitVote) Err() error {
	if u.Resolved() {
		return nil
	}
	return apperrors.NewEmptyUnitVoteError()
}

// VoteUnit tallies unit tokens by exact text. Ties go to the token seen
// first.
func VoteUnit(words []ocr.Word) UnitVote {
	tally := make(map[string]int)
	var order []string
	for _, w := range words {
		if !w.IsWord() || !unitToken.MatchString(w.Text) {
			continue
		}
		if tally[w.Text] == 0 {
			order = append(order, w.Text)
		}
		tally[w.Text]++
	}

	vote := UnitVote{Tally: tally}
	for _, tok := range order {
		if tally[tok] > vote.Count {
			vote.Token, vote.Count = tok, tally[tok]
		}
	}
	return vote
}

// YearCount is one candidate year and its frequency.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// YearVote holds the reporting years of a document. Current and Prior are
// zero when the vote is unresolved.
type YearVote struct {
	Current    int         `json:"current"`
	Prior      int         `json:"prior"`
	Candidates []YearCount `json:"candidates,omitempty"`
	err        error
}

// Resolved reports whether two consecutive years won the vote.
func (y YearVote) Resolved() bool { return y.err == nil && y.Current != 0 }

// Err returns the reason the vote failed, or nil.
func (y YearVote) Err() error { return y.err }

// VoteYears counts integer values inside [min, max] and accepts the two
// most frequent only when they are consecutive. Equal counts rank the later
// year first.
func VoteYears(words []ocr.Word, lo, hi int) YearVote {
	counts := make(map[int]int)
	for _, w := range words {
		if !w.IsWord() || !w.HasValue || !ocr.IsYear(w.Value, lo, hi) {
			continue
		}
		counts[int(w.Value)]++
	}
	return decideYears(counts)
}

func decideYears(counts map[int]int) YearVote {
	candidates := make([]YearCount, 0, len(counts))
	for y, c := range counts {
		candidates = append(candidates, YearCount{Year: y, Count: c})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Count != candidates[j].Count {
			return candidates[i].Count > candidates[j].Count
		}
		return candidates[i].Year > candidates[j].Year
	})

	vote := YearVote{Candidates: candidates}
	if len(candidates) < 2 {
		first := 0
		if len(candidates) == 1 {
			first = candidates[0].Year
		}
		vote.err = apperrors.NewAmbiguousYearVoteError(first, 0)
		return vote
	}

	a, b := candidates[0].Year, candidates[1].Year
	if a-b != 1 && b-a != 1 {
		vote.err = apperrors.NewAmbiguousYearVoteError(a, b)
		return vote
	}
	vote.Current, vote.Prior = max(a, b), min(a, b)
	return vote
}
