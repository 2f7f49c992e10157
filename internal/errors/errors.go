package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Error types for the balance-sheet extraction worker
 *
 * Core stages never abort a document: they report *ProcessingError values
 * that callers log and skip. Only ingestion and persistence adapters return
 * them as hard failures.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorMalformedRow      ErrorCode = "MALFORMED_ROW"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"

	// Extraction errors
	ErrorNoPatternMatch          ErrorCode = "NO_PATTERN_MATCH"
	ErrorExtractionFailed        ErrorCode = "EXTRACTION_FAILED"
	ErrorStatisticNotFound       ErrorCode = "STATISTIC_NOT_FOUND"
	ErrorEmptyPageClassification ErrorCode = "EMPTY_PAGE_CLASSIFICATION"

	// Voting errors
	ErrorAmbiguousYearVote ErrorCode = "AMBIGUOUS_YEAR_VOTE"
	ErrorEmptyUnitVote     ErrorCode = "EMPTY_UNIT_VOTE"

	// Worker errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// WithJob returns a copy of the error attributed to jobID.
func (e *ProcessingError) WithJob(jobID string) *ProcessingError {
	c := *e
	c.JobID = jobID
	return &c
}

// HasCode reports whether err (or anything it wraps) is a ProcessingError
// carrying code.
func HasCode(err error, code ErrorCode) bool {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// Factory functions for common errors

func NewMalformedRowError(row int, reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorMalformedRow,
		Message:   fmt.Sprintf("Malformed word record at row %d: %s", row, reason),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"row": row,
		},
	}
}

func NewNoPatternMatchError(pageID int, line string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoPatternMatch,
		Message:   "Band text does not match the finance-line grammar",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page_id": pageID,
			"line":    line,
		},
	}
}

func NewExtractionFailedError(pageID int, line string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorExtractionFailed,
		Message:   "Failed to reconstruct line item",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page_id": pageID,
			"line":    line,
		},
		Cause: cause,
	}
}

func NewStatisticNotFoundError(phrase string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStatisticNotFound,
		Message:   fmt.Sprintf("No strategy located statistic %q", phrase),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"phrase": phrase,
		},
	}
}

func NewEmptyPageClassificationError() *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEmptyPageClassification,
		Message:   "No page classified as a balance sheet",
		Timestamp: time.Now(),
	}
}

func NewAmbiguousYearVoteError(first, second int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorAmbiguousYearVote,
		Message:   fmt.Sprintf("Top voted years %d and %d are not consecutive", first, second),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"first":  first,
			"second": second,
		},
	}
}

func NewEmptyUnitVoteError() *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEmptyUnitVote,
		Message:   "No currency or magnitude token found",
		Timestamp: time.Now(),
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewOCRFailedError(jobID string, page int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR failed on page %d", page),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page": page,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.JobID != "" {
		result["job_id"] = e.JobID
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
