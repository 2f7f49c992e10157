package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/ONSBigData/parsing-company-accounts/internal/errors"
	"github.com/ONSBigData/parsing-company-accounts/internal/export"
	"github.com/ONSBigData/parsing-company-accounts/internal/processor"
	"github.com/ONSBigData/parsing-company-accounts/internal/queue"
	"github.com/ONSBigData/parsing-company-accounts/internal/storage"
	"github.com/ONSBigData/parsing-company-accounts/internal/voting"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProcessor struct {
	err      error
	requests []*processor.ProcessRequest
	statuses []string
}

func (f *fakeProcessor) ProcessDocument(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &processor.ProcessResult{
		JobID:    req.JobID,
		Filename: req.Filename,
		Source:   processor.SourceWordTable,
		Extraction: &processor.Extraction{
			Records: []voting.Record{{Label: "Net assets", HasValues: true, ValueCurrent: 14256, ValuePrior: 11700}},
			Pages:   []int{2},
		},
	}, nil
}

func (f *fakeProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type fakeEnqueuer struct {
	jobs []*queue.JobData
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job *queue.JobData) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "task-" + job.JobID, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeJobs struct {
	jobs    map[string]map[string]interface{}
	pingErr error
}

func (f *fakeJobs) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, storage.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobs) Ping(ctx context.Context) error { return f.pingErr }

func uploadRequest(t *testing.T, target string, fields map[string][]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "accounts.tsv")
	require.NoError(t, err)
	_, err = part.Write([]byte("level\tpage_num\n"))
	require.NoError(t, err)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(name, v))
		}
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(NewHandler(Config{Processor: &fakeProcessor{}, Jobs: &fakeJobs{}}), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = serve(NewHandler(Config{Processor: &fakeProcessor{}, Jobs: &fakeJobs{pingErr: errors.New("connection refused")}}), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestExtract_JSON(t *testing.T) {
	proc := &fakeProcessor{}
	req := uploadRequest(t, "/api/v1/extract", map[string][]string{
		"statistics": {"net assets, fixed assets", "stocks"},
	})

	rec := serve(NewHandler(Config{Processor: proc}), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, proc.requests, 1)
	assert.Equal(t, "accounts.tsv", proc.requests[0].Filename)
	assert.Equal(t, []string{"net assets", "fixed assets", "stocks"}, proc.requests[0].Statistics)
	assert.Equal(t, []string{processor.StatusProcessing, processor.StatusCompleted}, proc.statuses)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, processor.SourceWordTable, body["source"])
	assert.Len(t, body["records"], 1)
}

func TestExtract_Workbook(t *testing.T) {
	rec := serve(NewHandler(Config{Processor: &fakeProcessor{}}), uploadRequest(t, "/api/v1/extract?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "accounts.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetLineItems)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unsupported", apperrors.NewUnsupportedFormatError("j", "application/zip"), http.StatusUnsupportedMediaType},
		{"ocr", apperrors.NewOCRFailedError("j", 1, errors.New("engine down")), http.StatusUnprocessableEntity},
		{"timeout", apperrors.NewProcessingTimeoutError("j", 0, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{err: tt.err}
			rec := serve(NewHandler(Config{Processor: proc}), uploadRequest(t, "/api/v1/extract", nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, []string{processor.StatusProcessing, processor.StatusFailed}, proc.statuses)
		})
	}
}

func TestExtract_MissingFile(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", nil)
	rec := serve(NewHandler(Config{Processor: &fakeProcessor{}}), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_TooLarge(t *testing.T) {
	proc := &fakeProcessor{}
	rec := serve(NewHandler(Config{Processor: proc, MaxFileSize: 4}), uploadRequest(t, "/api/v1/extract", nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, proc.requests)
}

func TestEnqueueJob(t *testing.T) {
	enq := &fakeEnqueuer{}
	h := NewHandler(Config{Processor: &fakeProcessor{}, Enqueuer: enq})

	body := `{"filename":"accounts.pdf","fileUrl":"https://example.com/a.pdf","statistics":["net assets"]}`
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Len(t, enq.jobs, 1)
	assert.NotEmpty(t, enq.jobs[0].JobID)
	assert.Equal(t, []string{"net assets"}, enq.jobs[0].Statistics)
	assert.Contains(t, rec.Body.String(), "task-"+enq.jobs[0].JobID)
}

func TestEnqueueJob_Rejected(t *testing.T) {
	h := NewHandler(Config{Processor: &fakeProcessor{}, Enqueuer: &fakeEnqueuer{}})
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(`{"filename":"a.pdf"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noQueue := NewHandler(Config{Processor: &fakeProcessor{}})
	rec = serve(noQueue, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetJob(t *testing.T) {
	jobs := &fakeJobs{jobs: map[string]map[string]interface{}{
		"job-1": {"id": "job-1", "status": "completed"},
	}}
	h := NewHandler(Config{Processor: &fakeProcessor{}, Jobs: jobs})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"completed"`)

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSplitPhrases(t *testing.T) {
	assert.Nil(t, splitPhrases(nil))
	assert.Equal(t, []string{"a", "b c"}, splitPhrases([]string{" a ,", "b c"}))
}
