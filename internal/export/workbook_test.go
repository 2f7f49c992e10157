package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ONSBigData/parsing-company-accounts/internal/processor"
	"github.com/ONSBigData/parsing-company-accounts/internal/statement"
	"github.com/ONSBigData/parsing-company-accounts/internal/voting"
)

func sampleResult() *processor.ProcessResult {
	netAssets := voting.Record{
		Statistic: "net_assets", Label: "Net assets", HasValues: true,
		ValueCurrent: 14256, ValuePrior: 11700,
		ConfidenceCurrent: 95.5, ConfidencePrior: 91,
		YearCurrent: 2019, YearPrior: 2018, YearResolved: true,
		PageID: 2, Strategy: statement.SourceAligner, SourceLine: "Net assets 14,256 11,700",
	}
	return &processor.ProcessResult{
		JobID:        "job-1",
		Filename:     "accounts.tsv",
		Source:       processor.SourceWordTable,
		ProcessingMs: 42,
		Extraction: &processor.Extraction{
			Records: []voting.Record{
				netAssets,
				{Label: "Capital and reserves", PageID: 2, Strategy: statement.SourceBand},
			},
			Statistics: []processor.StatisticResult{
				{Name: "net_assets", Found: true, Record: &netAssets},
				{Name: "shareholders_funds", Attempts: []statement.Attempt{
					{Strategy: statement.SourceExactWord, Phrase: "shareholders funds", Reason: "no line matched"},
				}},
			},
			Years: voting.YearVote{Current: 2019, Prior: 2018},
			Pages: []int{2, 3},
		},
	}
}

func readWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteWorkbook_Sheets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, []*processor.ProcessResult{sampleResult()}))

	f := readWorkbook(t, buf.Bytes())
	assert.Equal(t, []string{SheetLineItems, SheetStatistics, SheetSummary}, f.GetSheetList())
}

func TestWriteWorkbook_LineItems(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, []*processor.ProcessResult{sampleResult()}))

	rows, err := readWorkbook(t, buf.Bytes()).GetRows(SheetLineItems)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "job_id", rows[0][0])
	assert.Equal(t, "source_line", rows[0][13])

	assert.Equal(t, "net_assets", rows[1][2])
	assert.Equal(t, "Net assets", rows[1][3])
	assert.Equal(t, "14256", rows[1][4])
	assert.Equal(t, "11700", rows[1][5])
	assert.Equal(t, "2019", rows[1][6])
	assert.Equal(t, "2018", rows[1][7])
	assert.Equal(t, "", rows[1][8], "unresolved unit stays blank")
	assert.Equal(t, "95.5", rows[1][9])

	// Heading rows carry no values.
	assert.Equal(t, "Capital and reserves", rows[2][3])
	assert.Equal(t, "", rows[2][4])
	assert.Equal(t, "", rows[2][6])
}

func TestWriteWorkbook_StatisticsAndSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, []*processor.ProcessResult{sampleResult(), nil}))
	f := readWorkbook(t, buf.Bytes())

	stats, err := f.GetRows(SheetStatistics)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "net_assets", stats[1][1])
	assert.Equal(t, "14256", stats[1][4])
	assert.Equal(t, "shareholders_funds", stats[2][1])
	assert.Contains(t, stats[2][8], "no line matched")

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "job-1", summary[1][0])
	assert.Equal(t, "2,3", summary[1][3])
	assert.Equal(t, "2", summary[1][7])
	assert.Equal(t, "1", summary[1][8])
	assert.Equal(t, "42", summary[1][11])
}

func TestWriteWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, nil))

	rows, err := readWorkbook(t, buf.Bytes()).GetRows(SheetLineItems)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
