/**
 * Document Processor for the accounts extraction worker
 *
 * Turns an uploaded filing into balance sheet line items:
 * 1. Load the file (buffer or URL)
 * 2. Detect its format
 * 3. Obtain word records (OCR table, PDF text layer, or Tesseract OCR)
 * 4. Run the extraction pipeline
 * 5. Persist the result
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ONSBigData/parsing-company-accounts/internal/config"
	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/logging"
	"github.com/ONSBigData/parsing-company-accounts/internal/ocr"
	"github.com/ONSBigData/parsing-company-accounts/internal/storage"
	"github.com/ONSBigData/parsing-company-accounts/internal/voting"
)

// DocumentProcessorInterface defines the interface for document processing
// Used by queue consumers to avoid tight coupling to concrete implementation
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error
}

// ResultStore persists job status and extraction results.
type ResultStore interface {
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
	StoreExtraction(ctx context.Context, input *storage.ExtractionInput) (*storage.ExtractionOutput, error)
}

// Job statuses written to the store.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DocumentProcessor handles the extraction pipeline
type DocumentProcessor struct {
	config    *ProcessorConfig
	pipeline  *Pipeline
	engine    ocr.Engine
	engineErr error
	storage   ResultStore
	logger    *logging.Logger
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	TempDir     string
	MaxFileSize int64
	Pipeline    PipelineConfig
	Catalogue   *config.Catalogue
	Tesseract   ocr.TesseractConfig
	// Engine overrides the Tesseract engine; used when OCR is provided
	// elsewhere.
	Engine  ocr.Engine
	Storage ResultStore
}

// ProcessRequest represents a document processing request
type ProcessRequest struct {
	JobID      string
	UserID     string
	Filename   string
	MimeType   string
	FileSize   int64
	FileURL    string // URL to download file from (for large files)
	FileBuffer []byte // Direct file buffer (for small files, optional)
	// Statistics replaces the configured catalogue with ad-hoc phrases.
	Statistics []string
	Metadata   map[string]interface{}
}

// ProcessResult represents the result of document processing
type ProcessResult struct {
	JobID          string        `json:"job_id"`
	Filename       string        `json:"filename,omitempty"`
	Source         string        `json:"source"`
	SkippedRows    int           `json:"skipped_rows"`
	ProcessingTime time.Duration `json:"-"`
	ProcessingMs   int64         `json:"processing_time_ms"`
	*Extraction
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("processor config is required")
	}
	if cfg.Catalogue == nil {
		catalogue, err := config.DefaultCatalogue()
		if err != nil {
			return nil, fmt.Errorf("failed to load statistics catalogue: %w", err)
		}
		cfg.Catalogue = catalogue
	}

	logger := logging.NewLogger("DocumentProcessor")
	p := &DocumentProcessor{
		config:   cfg,
		pipeline: NewPipeline(cfg.Pipeline, cfg.Catalogue, logging.NewLogger("Pipeline")),
		engine:   cfg.Engine,
		storage:  cfg.Storage,
		logger:   logger,
	}

	if p.engine == nil {
		engine, err := ocr.NewTesseractEngine(cfg.Tesseract)
		if err != nil {
			// Table and text-layer input still work without OCR.
			log.Printf("Warning: Tesseract unavailable: %v", err)
			p.engineErr = err
		} else {
			p.engine = engine
		}
	}

	return p, nil
}

// ProcessDocument processes a document through the extraction pipeline
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()

	log.Printf("[Job %s] Starting extraction: %s (%s, %d bytes)",
		req.JobID, req.Filename, req.MimeType, req.FileSize)

	input, err := p.readInput(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 4: Extract
	log.Printf("[Job %s] Step 4: Extracting line items...", req.JobID)
	var catalogue *config.Catalogue
	if len(req.Statistics) > 0 {
		catalogue = config.AdHoc(req.Statistics)
	}
	extraction, err := p.pipeline.Run(ctx, input.words, catalogue)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewProcessingTimeoutError(req.JobID, time.Since(startTime), err)
		}
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	for _, issue := range input.issues {
		extraction.Failures = append(extraction.Failures, issue.WithJob(req.JobID))
		extraction.FailureDetails = append(extraction.FailureDetails, issue.ToMap())
	}
	log.Printf("[Job %s] Step 4 complete: %d items on pages %v, unit=%q, years=%d/%d, %d failures",
		req.JobID, len(extraction.Records), extraction.Pages, extraction.Unit.Token,
		extraction.Years.Current, extraction.Years.Prior, len(extraction.Failures))

	result := &ProcessResult{
		JobID:       req.JobID,
		Filename:    req.Filename,
		Source:      input.source,
		SkippedRows: input.skipped,
		Extraction:  extraction,
	}

	// Step 5: Persist
	if p.storage != nil {
		log.Printf("[Job %s] Step 5: Storing results...", req.JobID)
		stored, err := p.storage.StoreExtraction(ctx, extractionInput(req.JobID, result))
		if err != nil {
			return nil, apperrors.NewStorageFailedError(req.JobID, err)
		}
		log.Printf("[Job %s] Step 5 complete: %d rows stored", req.JobID, stored.ItemCount)
	}

	result.ProcessingTime = time.Since(startTime)
	result.ProcessingMs = result.ProcessingTime.Milliseconds()
	log.Printf("[Job %s] Extraction complete in %v", req.JobID, result.ProcessingTime)

	return result, nil
}

// ClassifyDocument reads a document and reports its candidate balance sheet
// pages without extracting line items.
func (p *DocumentProcessor) ClassifyDocument(ctx context.Context, req *ProcessRequest, phrases ...string) (*Classification, error) {
	input, err := p.readInput(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.pipeline.Classify(input.words, phrases...), nil
}

// readInput loads the file, settles its format and reads its word records.
func (p *DocumentProcessor) readInput(ctx context.Context, req *ProcessRequest) (*wordInput, error) {
	// Step 1: Load file
	log.Printf("[Job %s] Step 1: Loading file...", req.JobID)
	fileData, err := p.loadFile(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	// Step 2: Detect format
	mimeType := req.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		if detected := detectMimeTypeFromMagicBytes(fileData); detected != "" {
			log.Printf("[Job %s] Step 2: Detected %s from content (declared %q)", req.JobID, detected, req.MimeType)
			mimeType = detected
		}
	}

	// Step 3: Obtain word records
	log.Printf("[Job %s] Step 3: Reading words (%s)...", req.JobID, mimeType)
	input, err := p.loadWords(ctx, req, fileData, mimeType)
	if err != nil {
		return nil, err
	}
	log.Printf("[Job %s] Step 3 complete: %d records from %s, %d rows skipped",
		req.JobID, len(input.words), input.source, input.skipped)
	return input, nil
}

// extractionInput flattens a result for storage: band items first, then
// every located statistic.
func extractionInput(jobID string, result *ProcessResult) *storage.ExtractionInput {
	in := &storage.ExtractionInput{
		JobID:       jobID,
		Source:      result.Source,
		YearCurrent: result.Years.Current,
		YearPrior:   result.Years.Prior,
		Pages:       result.Pages,
		Records:     append([]voting.Record(nil), result.Records...),
		Summary: map[string]interface{}{
			"page_count":      result.PageCount,
			"unmatched_bands": result.Unmatched,
			"skipped_rows":    result.SkippedRows,
			"failures":        len(result.Failures),
			"column_orders":   result.ColumnOrders,
		},
	}
	if result.Unit.Resolved() {
		in.Unit = result.Unit.Token
	}
	for _, s := range result.Statistics {
		if s.Found {
			in.Records = append(in.Records, *s.Record)
		}
	}
	return in
}

// UpdateJobStatus updates job status in the store. Without a store it only
// logs.
func (p *DocumentProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error {
	p.logger.Info("Job status", "job", jobID, "status", status, "progress", progress)
	if p.storage == nil {
		return nil
	}

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	if metadata != nil {
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if code, ok := metadata["errorCode"].(string); ok {
			update.ErrorCode = code
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			if update.ErrorCode == "" {
				update.ErrorCode = "PROCESSING_ERROR"
			}
			update.ErrorMessage = errorMsg
		}
	}

	return p.storage.UpdateJobStatus(ctx, update)
}

// loadFile loads file from URL or buffer
func (p *DocumentProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	if len(req.FileBuffer) > 0 {
		if p.config.MaxFileSize > 0 && int64(len(req.FileBuffer)) > p.config.MaxFileSize {
			return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes", len(req.FileBuffer), p.config.MaxFileSize)
		}
		log.Printf("[Job %s] Using file buffer (%d bytes)", req.JobID, len(req.FileBuffer))
		return req.FileBuffer, nil
	}

	if req.FileURL != "" {
		log.Printf("[Job %s] Downloading file from URL: %s (fileSize=%d)", req.JobID, req.FileURL, req.FileSize)
		fileData, err := p.downloadFileFromURL(ctx, req.JobID, req.FileURL, req.FileSize)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		log.Printf("[Job %s] File downloaded successfully (%d bytes)", req.JobID, len(fileData))
		return fileData, nil
	}

	return nil, fmt.Errorf("no file source provided (buffer or URL)")
}

// downloadFileFromURL downloads a file with exponential backoff between
// attempts.
func (p *DocumentProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string, expectedSize int64) ([]byte, error) {
	const (
		maxRetries        = 5
		initialBackoffMs  = 1000
		maxBackoffMs      = 32000
		downloadTimeoutMs = 600000 // 10 minutes total
	)

	client := &http.Client{
		Timeout: time.Duration(downloadTimeoutMs) * time.Millisecond,
	}

	maxReadBytes := p.config.MaxFileSize
	if maxReadBytes == 0 {
		maxReadBytes = 1024 * 1024 * 1024 // 1GB safety limit
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			backoffMs := initialBackoffMs * int(math.Pow(2, float64(attempt-2)))
			if backoffMs > maxBackoffMs {
				backoffMs = maxBackoffMs
			}
			log.Printf("[Job %s] Retrying in %dms...", jobID, backoffMs)
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		log.Printf("[Job %s] Download attempt %d/%d from: %s", jobID, attempt, maxRetries, fileURL)
		fileData, retry, err := p.fetch(ctx, client, fileURL, expectedSize, maxReadBytes, jobID)
		if err == nil {
			log.Printf("[Job %s] Download successful on attempt %d: %d bytes", jobID, attempt, len(fileData))
			return fileData, nil
		}
		lastErr = err
		log.Printf("[Job %s] Download attempt %d failed: %v", jobID, attempt, err)
		if !retry {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to download file after %d attempts: %w", maxRetries, lastErr)
}

// fetch performs one download attempt and reports whether a failure is
// worth retrying.
func (p *DocumentProcessor) fetch(ctx context.Context, client *http.Client, fileURL string, expectedSize, maxReadBytes int64, jobID string) ([]byte, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Client errors other than throttling will not improve on retry.
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if resp.ContentLength > 0 && expectedSize > 0 && resp.ContentLength != expectedSize {
		log.Printf("[Job %s] WARNING: Content-Length mismatch. Expected=%d, Got=%d",
			jobID, expectedSize, resp.ContentLength)
	}
	if resp.ContentLength > maxReadBytes {
		return nil, false, fmt.Errorf("file size exceeds maximum: %d > %d bytes", resp.ContentLength, maxReadBytes)
	}

	fileData, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(fileData)) > maxReadBytes {
		return nil, false, fmt.Errorf("file size exceeds maximum: more than %d bytes", maxReadBytes)
	}
	return fileData, false, nil
}

// isWordTable reports whether a file is an OCR word table rather than a
// document: by declared type, by extension, or by a Tesseract TSV header.
func isWordTable(filename, mimeType string, data []byte) bool {
	switch mimeType {
	case "text/tab-separated-values", "text/csv", "text/plain":
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsv", ".csv", ".txt":
		return true
	}
	head := data
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(bytes.TrimLeft(head, "\ufeff \r\n"), []byte("level"))
}

// detectMimeTypeFromMagicBytes detects the actual MIME type from file content magic bytes
// This is essential when sources like Google Drive return generic "application/octet-stream"
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// TIFF: 'I' 'I' 0x2A 0x00 (little-endian) or 'M' 'M' 0x00 0x2A (big-endian)
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	// Tesseract TSV header
	if bytes.HasPrefix(data, []byte("level\t")) {
		return "text/tab-separated-values"
	}

	return ""
}
