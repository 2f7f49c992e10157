package voting

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
	"github.com/ONSBigData/parsing-company-accounts/internal/statement"
)

// tokens expands a token multiset into enriched word records.
func tokens(counts ...interface{}) []ocr.Word {
	var words []ocr.Word
	for i := 0; i+1 < len(counts); i += 2 {
		text := counts[i].(string)
		for n := 0; n < counts[i+1].(int); n++ {
			words = append(words, ocr.Word{PageID: 1, Level: ocr.LevelWord, WordNum: 1, Text: text})
		}
	}
	return ocr.Enrich(words)
}

func TestVoteUnit(t *testing.T) {
	vote := VoteUnit(tokens("$", 3, "£m", 12, "Million", 2, "assets", 40))
	require.True(t, vote.Resolved())
	assert.Equal(t, "£m", vote.Token)
	assert.Equal(t, 12, vote.Count)
	assert.Equal(t, 2, vote.Tally["Million"])
	assert.NoError(t, vote.Err())
}

func TestVoteUnitTieKeepsFirstSeen(t *testing.T) {
	vote := VoteUnit(tokens("thousand", 2, "£", 2))
	assert.Equal(t, "thousand", vote.Token)
}

func TestVoteUnitEmpty(t *testing.T) {
	vote := VoteUnit(tokens("Total", 1, "1,234", 1))
	assert.False(t, vote.Resolved())
	assert.True(t, apperrors.HasCode(vote.Err(), apperrors.ErrorEmptyUnitVote))
}

func years(counts map[int]int) []ocr.Word {
	var args []interface{}
	for y, c := range counts {
		args = append(args, strconv.Itoa(y), c)
	}
	return tokens(args...)
}

func TestVoteYears(t *testing.T) {
	vote := VoteYears(years(map[int]int{2019: 5, 2018: 4, 2017: 1}), DefaultYearMin, DefaultYearMax)
	require.True(t, vote.Resolved())
	assert.Equal(t, 2019, vote.Current)
	assert.Equal(t, 2018, vote.Prior)
	assert.Equal(t, YearCount{Year: 2019, Count: 5}, vote.Candidates[0])
}

func TestVoteYearsPriorMoreFrequent(t *testing.T) {
	vote := VoteYears(years(map[int]int{2017: 6, 2018: 4}), DefaultYearMin, DefaultYearMax)
	require.True(t, vote.Resolved())
	assert.Equal(t, 2018, vote.Current)
	assert.Equal(t, 2017, vote.Prior)
}

func TestVoteYearsGapFails(t *testing.T) {
	vote := VoteYears(years(map[int]int{2019: 5, 2017: 4}), DefaultYearMin, DefaultYearMax)
	assert.False(t, vote.Resolved())
	assert.Zero(t, vote.Current)
	assert.True(t, apperrors.HasCode(vote.Err(), apperrors.ErrorAmbiguousYearVote))
}

func TestVoteYearsIgnoresOutOfRange(t *testing.T) {
	words := append(years(map[int]int{1999: 9, 2051: 9, 2019: 2, 2018: 1}), tokens("2019.5", 4, "(2,019)", 1)...)
	vote := VoteYears(words, DefaultYearMin, DefaultYearMax)
	require.True(t, vote.Resolved())
	assert.Equal(t, 2019, vote.Current)
	assert.Equal(t, 2, len(vote.Candidates))
	assert.Equal(t, 3, vote.Candidates[0].Count)
}

func TestVoteYearsSingleCandidate(t *testing.T) {
	vote := VoteYears(years(map[int]int{2019: 3}), DefaultYearMin, DefaultYearMax)
	assert.False(t, vote.Resolved())
	assert.Error(t, vote.Err())
}

func TestVoteYearsTieRanksLaterYearFirst(t *testing.T) {
	vote := VoteYears(years(map[int]int{2018: 3, 2019: 3, 2010: 1}), DefaultYearMin, DefaultYearMax)
	require.True(t, vote.Resolved())
	assert.Equal(t, 2019, vote.Candidates[0].Year)
}

func item() statement.Item {
	return statement.Item{
		Label: "Total assets",
		Values: []statement.Value{
			{Amount: 1234, Confidence: 91, CurrentYear: true},
			{Amount: 1100, Confidence: 88},
		},
		SourceLine: "Total assets 1,234 1,100",
		PageID:     4,
		Strategy:   statement.SourceBand,
	}
}

func TestAnnotate(t *testing.T) {
	unit := VoteUnit(tokens("£", 4))
	yrs := VoteYears(years(map[int]int{2019: 2, 2018: 2}), DefaultYearMin, DefaultYearMax)

	records := Annotate([]statement.Item{item()}, unit, yrs)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "Total assets", r.Label)
	assert.Equal(t, 1234.0, r.ValueCurrent)
	assert.Equal(t, 1100.0, r.ValuePrior)
	assert.Equal(t, 2019, r.YearCurrent)
	assert.Equal(t, 2018, r.YearPrior)
	assert.Equal(t, "£", r.Unit)
	assert.Equal(t, 91.0, r.ConfidenceCurrent)
	assert.Equal(t, 88.0, r.ConfidencePrior)
	assert.True(t, r.HasValues)
	assert.True(t, r.YearResolved)
	assert.True(t, r.UnitResolved)
}

func TestAnnotateUnresolved(t *testing.T) {
	unit := VoteUnit(nil)
	yrs := VoteYears(years(map[int]int{2019: 5, 2017: 4}), DefaultYearMin, DefaultYearMax)

	r := AnnotateItem(item(), unit, yrs)
	assert.False(t, r.YearResolved)
	assert.False(t, r.UnitResolved)
	assert.Zero(t, r.YearCurrent)
	assert.Empty(t, r.Unit)
	assert.Equal(t, 1234.0, r.ValueCurrent, "values survive an unresolved vote")

	empty := AnnotateItem(statement.Item{Label: "Heading"}, unit, yrs)
	assert.False(t, empty.HasValues)
}
