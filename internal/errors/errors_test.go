package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingErrorMessage(t *testing.T) {
	err := NewAmbiguousYearVoteError(2019, 2017)
	assert.Equal(t, "AMBIGUOUS_YEAR_VOTE: Top voted years 2019 and 2017 are not consecutive", err.Error())

	cause := fmt.Errorf("disk full")
	wrapped := NewStorageFailedError("job-1", cause)
	assert.Contains(t, wrapped.Error(), "caused by: disk full")
	assert.ErrorIs(t, wrapped, cause)
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("page 3: %w", NewNoPatternMatchError(3, "Directors report"))
	assert.True(t, HasCode(err, ErrorNoPatternMatch))
	assert.False(t, HasCode(err, ErrorExtractionFailed))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrorNoPatternMatch))
}

func TestToMap(t *testing.T) {
	err := NewProcessingTimeoutError("job-9", 2*time.Second, nil)
	m := err.ToMap()
	require.Equal(t, "PROCESSING_TIMEOUT", m["error_code"])
	assert.Equal(t, "2s", m["timeout_duration"])
	assert.Equal(t, "job-9", m["job_id"])
	assert.NotContains(t, m, "cause")
}

func TestWithJobCopies(t *testing.T) {
	base := NewEmptyUnitVoteError()
	tagged := base.WithJob("abc")
	assert.Equal(t, "abc", tagged.JobID)
	assert.Empty(t, base.JobID)
}
