package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ONSBigData/parsing-company-accounts/internal/voting"
)

func TestJobUUID(t *testing.T) {
	id := uuid.New().String()
	assert.Equal(t, id, JobUUID(id))

	derived := JobUUID("job-42")
	_, err := uuid.Parse(derived)
	require.NoError(t, err)
	assert.Equal(t, derived, JobUUID("job-42"), "name-based ids are stable")
	assert.NotEqual(t, derived, JobUUID("job-43"))
}

func TestSanitizeConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want interface{}
	}{
		{"unrecognised", -1, nil},
		{"rounded", 91.123456789, 91.1235},
		{"clamped", 140, 100.0},
		{"zero", 0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeConfidence(tt.in))
		})
	}
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	in := []byte(`{"text":"Net\u0000 assets\u0007"}`)
	assert.Equal(t, `{"text":"Net assets "}`, string(sanitizeJSONForPostgres(in)))
}

func TestRowsFromRecords(t *testing.T) {
	rows := RowsFromRecords([]voting.Record{
		{Label: "Total assets", ValueCurrent: 1234, ValuePrior: 1100, HasValues: true, PageID: 3, Strategy: "band"},
		{Statistic: "net_assets", Label: "Net assets", PageID: 3, Strategy: "keyword-aligner"},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Position)
	assert.Equal(t, 1, rows[1].Position)
	assert.Equal(t, "net_assets", rows[1].Statistic)
}

func TestCopyValuesNullsMissingData(t *testing.T) {
	row := LineItemRow{Label: "Creditors", PageID: 2, Strategy: "band"}
	values := row.copyValues("job")
	require.Len(t, values, len(lineItemColumns))

	col := func(name string) interface{} {
		for i, c := range lineItemColumns {
			if c == name {
				return values[i]
			}
		}
		t.Fatalf("no column %s", name)
		return nil
	}
	assert.Nil(t, col("value_current"))
	assert.Nil(t, col("confidence_prior"))
	assert.Nil(t, col("year_current"))
	assert.Nil(t, col("unit"))
	assert.Equal(t, "job", col("job_id"))
	assert.Equal(t, false, col("has_values"))

	row.HasValues, row.ValueCurrent, row.ConfidenceCurrent = true, 10, 95.5
	values = row.copyValues("job")
	assert.Equal(t, 10.0, col("value_current"))
	assert.Equal(t, 95.5, col("confidence_current"))
}
