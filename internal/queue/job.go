/**
 * Extraction jobs shared by both queue backends
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/processor"
)

// DefaultProcessingTimeout applies when no timeout is configured.
const DefaultProcessingTimeout = 300000 * time.Millisecond

// JobData describes one extraction job.
type JobData struct {
	JobID      string                 `json:"jobId"`
	UserID     string                 `json:"userId"`
	Filename   string                 `json:"filename"`
	MimeType   string                 `json:"mimeType,omitempty"`
	FileSize   int64                  `json:"fileSize,omitempty"`
	FileURL    string                 `json:"fileUrl,omitempty"`
	FileBuffer []byte                 `json:"fileBuffer,omitempty"`
	Statistics []string               `json:"statistics,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts fileBuffer as a base64 string or as a Node.js
// Buffer object ({"type":"Buffer","data":[...]}).
func (j *JobData) UnmarshalJSON(data []byte) error {
	type alias JobData
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*alias
	}{
		alias: (*alias)(j),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	switch v := aux.FileBuffer.(type) {
	case nil:
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
		}
		j.FileBuffer = decoded
	case map[string]interface{}:
		if t, _ := v["type"].(string); t != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		values, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		j.FileBuffer = make([]byte, len(values))
		for i, val := range values {
			b, ok := val.(float64)
			if !ok || b < 0 || b > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			j.FileBuffer[i] = byte(b)
		}
	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}
	return nil
}

// Request converts the job to a processor request.
func (j *JobData) Request() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:      j.JobID,
		UserID:     j.UserID,
		Filename:   j.Filename,
		MimeType:   j.MimeType,
		FileSize:   j.FileSize,
		FileURL:    j.FileURL,
		FileBuffer: j.FileBuffer,
		Statistics: j.Statistics,
		Metadata:   j.Metadata,
	}
}

// Validate checks the fields every job needs.
func (j *JobData) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("jobId is required")
	}
	if len(j.FileBuffer) == 0 && j.FileURL == "" {
		return fmt.Errorf("job %s has neither fileBuffer nor fileUrl", j.JobID)
	}
	return nil
}

// permanent reports failures that a retry cannot fix.
func permanent(err error) bool {
	return apperrors.HasCode(err, apperrors.ErrorUnsupportedFormat) ||
		apperrors.HasCode(err, apperrors.ErrorProcessingTimeout)
}

// runJob processes one job under a timeout and records its status
// transitions. The returned error is the processing failure, if any.
func runJob(ctx context.Context, proc processor.DocumentProcessorInterface, timeout time.Duration, job *JobData) (*processor.ProcessResult, error) {
	startTime := time.Now()

	if err := proc.UpdateJobStatus(ctx, job.JobID, processor.StatusProcessing, 0, map[string]interface{}{
		"filename": job.Filename,
		"mimeType": job.MimeType,
		"fileSize": job.FileSize,
		"userId":   job.UserID,
	}); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to processing: %v", job.JobID, err)
	}

	if timeout <= 0 {
		timeout = DefaultProcessingTimeout
	}
	log.Printf("[Job %s] Processing timeout set to: %v", job.JobID, timeout)

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := proc.ProcessDocument(processCtx, job.Request())
	duration := time.Since(startTime)

	if err != nil {
		var failure map[string]interface{}
		if errors.Is(processCtx.Err(), context.DeadlineExceeded) {
			log.Printf("[Job %s] Processing timed out after %v (timeout: %v)", job.JobID, duration, timeout)
			err = apperrors.NewProcessingTimeoutError(job.JobID, timeout, err)
		} else {
			log.Printf("[Job %s] Processing failed after %v: %v", job.JobID, duration, err)
		}

		var perr *apperrors.ProcessingError
		if errors.As(err, &perr) {
			failure = perr.ToMap()
			failure["errorCode"] = string(perr.Code)
		} else {
			failure = map[string]interface{}{}
		}
		failure["error"] = err.Error()
		failure["processingTime"] = duration.Milliseconds()

		if updateErr := proc.UpdateJobStatus(ctx, job.JobID, processor.StatusFailed, 100, failure); updateErr != nil {
			log.Printf("[Job %s] Warning: Failed to update status to failed: %v", job.JobID, updateErr)
		}
		return nil, err
	}

	log.Printf("[Job %s] Processing completed in %v: %d items, %d statistics, pages=%v",
		job.JobID, duration, len(result.Records), len(result.Statistics), result.Pages)

	if err := proc.UpdateJobStatus(ctx, job.JobID, processor.StatusCompleted, 100, completionMetadata(result, duration)); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to completed: %v", job.JobID, err)
	}
	return result, nil
}

func completionMetadata(result *processor.ProcessResult, duration time.Duration) map[string]interface{} {
	found := 0
	for _, s := range result.Statistics {
		if s.Found {
			found++
		}
	}
	return map[string]interface{}{
		"processingTime":    duration.Milliseconds(),
		"source":            result.Source,
		"itemCount":         len(result.Records),
		"statisticsFound":   found,
		"balanceSheetPages": result.Pages,
		"unitResolved":      result.Unit.Resolved(),
		"yearResolved":      result.Years.Resolved(),
		"failures":          len(result.Failures),
	}
}
