/**
 * HTTP API for the accounts extraction worker
 *
 * Routes:
 *   GET  /health             liveness plus database and queue checks
 *   POST /api/v1/extract     synchronous extraction of an uploaded file
 *   POST /api/v1/jobs        enqueue an extraction job
 *   GET  /api/v1/jobs/:id    stored job status and line items
 */

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/export"
	"github.com/ONSBigData/parsing-company-accounts/internal/logging"
	"github.com/ONSBigData/parsing-company-accounts/internal/processor"
	"github.com/ONSBigData/parsing-company-accounts/internal/queue"
	"github.com/ONSBigData/parsing-company-accounts/internal/storage"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// JobStore reads stored jobs.
type JobStore interface {
	GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error)
	Ping(ctx context.Context) error
}

// Config wires the handler dependencies. Enqueuer and Jobs are optional;
// routes that need a missing dependency answer 503.
type Config struct {
	Processor         processor.DocumentProcessorInterface
	Enqueuer          queue.Enqueuer
	Jobs              JobStore
	MaxFileSize       int64
	ProcessingTimeout time.Duration
}

// Handler serves the HTTP API.
type Handler struct {
	cfg    Config
	logger *logging.Logger
}

// NewHandler creates a handler.
func NewHandler(cfg Config) *Handler {
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = queue.DefaultProcessingTimeout
	}
	return &Handler{cfg: cfg, logger: logging.NewLogger("API")}
}

// NewRouter registers the API routes on a new gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if h.cfg.MaxFileSize > 0 {
		router.MaxMultipartMemory = h.cfg.MaxFileSize
	}

	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/extract", h.Extract)
		v1.POST("/jobs", h.EnqueueJob)
		v1.GET("/jobs/:id", h.GetJob)
	}
	return router
}

// Health reports liveness and the state of the backing services.
func (h *Handler) Health(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if h.cfg.Jobs != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := h.cfg.Jobs.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	checks["queue"] = h.cfg.Enqueuer != nil

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": "accounts-extraction",
		"checks":  checks,
	})
}

// Extract runs the pipeline on an uploaded file and returns the result as
// JSON, or as a workbook when format=xlsx.
func (h *Handler) Extract(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	defer file.Close()

	if h.cfg.MaxFileSize > 0 && header.Size > h.cfg.MaxFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file size %d exceeds limit %d", header.Size, h.cfg.MaxFileSize),
		})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read upload: %v", err)})
		return
	}

	req := &processor.ProcessRequest{
		JobID:      uuid.New().String(),
		UserID:     c.PostForm("userId"),
		Filename:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		FileSize:   int64(len(data)),
		FileBuffer: data,
		Statistics: splitPhrases(c.PostFormArray("statistics")),
	}
	logger := h.logger.With("job", req.JobID)
	logger.Info("Synchronous extraction", "filename", req.Filename, "size", req.FileSize)

	h.recordStatus(c.Request.Context(), req.JobID, processor.StatusProcessing, map[string]interface{}{
		"filename": req.Filename,
		"mimeType": req.MimeType,
		"fileSize": req.FileSize,
		"userId":   req.UserID,
	})

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.ProcessingTimeout)
	defer cancel()
	result, err := h.cfg.Processor.ProcessDocument(ctx, req)
	if err != nil {
		logger.Error("Extraction failed", "error", err)
		failure := errorBody(err)
		h.recordStatus(c.Request.Context(), req.JobID, processor.StatusFailed, failure)
		c.JSON(statusFor(err), failure)
		return
	}
	h.recordStatus(c.Request.Context(), req.JobID, processor.StatusCompleted, map[string]interface{}{
		"processingTime": result.ProcessingMs,
		"source":         result.Source,
		"itemCount":      len(result.Records),
	})

	if strings.EqualFold(c.Query("format"), "xlsx") {
		var buf bytes.Buffer
		if err := export.WriteWorkbook(&buf, []*processor.ProcessResult{result}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		name := strings.TrimSuffix(req.Filename, "."+extension(req.Filename)) + ".xlsx"
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
		return
	}

	c.JSON(http.StatusOK, result)
}

// EnqueueJob accepts a job description and hands it to the queue.
func (h *Handler) EnqueueJob(c *gin.Context) {
	if h.cfg.Enqueuer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue not configured"})
		return
	}

	var job queue.JobData
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if err := job.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID, err := h.cfg.Enqueuer.Enqueue(c.Request.Context(), &job)
	if err != nil {
		h.logger.Error("Enqueue failed", "job", job.JobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":  job.JobID,
		"taskId": taskID,
		"status": "queued",
	})
}

// GetJob returns a stored job with its line items.
func (h *Handler) GetJob(c *gin.Context) {
	if h.cfg.Jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
		return
	}

	job, err := h.cfg.Jobs.GetJobByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) recordStatus(ctx context.Context, jobID, status string, metadata map[string]interface{}) {
	if err := h.cfg.Processor.UpdateJobStatus(ctx, jobID, status, 100, metadata); err != nil {
		h.logger.Warn("Failed to record job status", "job", jobID, "status", status, "error", err)
	}
}

// splitPhrases accepts repeated fields and comma-separated lists.
func splitPhrases(values []string) []string {
	var phrases []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
	}
	return phrases
}

func extension(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i+1:]
	}
	return ""
}

func errorBody(err error) map[string]interface{} {
	var perr *apperrors.ProcessingError
	if errors.As(err, &perr) {
		body := perr.ToMap()
		body["errorCode"] = string(perr.Code)
		body["error"] = err.Error()
		return body
	}
	return map[string]interface{}{"error": err.Error()}
}

func statusFor(err error) int {
	switch {
	case apperrors.HasCode(err, apperrors.ErrorUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case apperrors.HasCode(err, apperrors.ErrorProcessingTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case apperrors.HasCode(err, apperrors.ErrorOCRFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
