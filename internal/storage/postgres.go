/**
 * PostgreSQL Client for the accounts extraction worker
 *
 * Handles job persistence and bulk storage of extracted line items.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS accounts;

	CREATE TABLE IF NOT EXISTS accounts.extraction_jobs (
		id                 UUID PRIMARY KEY,
		user_id            TEXT NOT NULL DEFAULT 'anonymous',
		filename           TEXT NOT NULL DEFAULT 'unknown',
		mime_type          TEXT,
		file_size          BIGINT,
		status             TEXT NOT NULL,
		source             TEXT,
		unit               TEXT,
		year_current       INTEGER,
		year_prior         INTEGER,
		pages              JSONB,
		item_count         INTEGER,
		processing_time_ms BIGINT,
		error_code         TEXT,
		error_message      TEXT,
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS accounts.line_items (
		id                 UUID PRIMARY KEY,
		job_id             UUID NOT NULL REFERENCES accounts.extraction_jobs(id) ON DELETE CASCADE,
		position           INTEGER NOT NULL,
		statistic          TEXT,
		label              TEXT NOT NULL,
		value_current      DOUBLE PRECISION,
		value_prior        DOUBLE PRECISION,
		year_current       INTEGER,
		year_prior         INTEGER,
		unit               TEXT,
		confidence_current NUMERIC(7,4),
		confidence_prior   NUMERIC(7,4),
		page_id            INTEGER NOT NULL,
		strategy           TEXT NOT NULL,
		source_line        TEXT,
		has_values         BOOLEAN NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS line_items_job_idx ON accounts.line_items (job_id, position);
`

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// JobUUID maps a job id onto the UUID the tables are keyed by. Producers
// that do not use UUIDs get a stable name-based one.
func JobUUID(jobID string) string {
	if id, err := uuid.Parse(jobID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("accounts:job:"+jobID)).String()
}

// sanitizeConfidence clamps an OCR confidence to [0, 100] with 4 decimal
// places. Negative confidences mean "not recognised" and are stored as NULL.
func sanitizeConfidence(confidence float64) interface{} {
	if confidence < 0 || math.IsNaN(confidence) {
		return nil
	}
	if confidence > 100 {
		confidence = 100
	}
	return math.Round(confidence*10000) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the accounts schema and tables if missing.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row; the first update creates it.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadata := update.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metadataJSON = sanitizeJSONForPostgres(metadataJSON)

	query := `
		INSERT INTO accounts.extraction_jobs (
			id, user_id, filename, mime_type, file_size,
			status, processing_time_ms, error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($9, ''), 'anonymous'), COALESCE(NULLIF($7, ''), 'unknown'),
			NULLIF($8, ''), NULLIF($10, 0),
			$2, NULLIF($3, 0), NULLIF($4, ''), NULLIF($5, ''),
			COALESCE($6::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, accounts.extraction_jobs.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			metadata = accounts.extraction_jobs.metadata || EXCLUDED.metadata,
			mime_type = COALESCE(EXCLUDED.mime_type, accounts.extraction_jobs.mime_type),
			file_size = COALESCE(EXCLUDED.file_size, accounts.extraction_jobs.file_size),
			updated_at = NOW()
		RETURNING id
	`

	var filename, mimeType, userID string
	var fileSize int64
	if fn, ok := update.Metadata["filename"].(string); ok {
		filename = fn
	}
	if mt, ok := update.Metadata["mimeType"].(string); ok {
		mimeType = mt
	}
	if uid, ok := update.Metadata["userId"].(string); ok {
		userID = uid
	}
	switch fs := update.Metadata["fileSize"].(type) {
	case int64:
		fileSize = fs
	case int:
		fileSize = int64(fs)
	case float64:
		fileSize = int64(fs)
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		JobUUID(update.JobID),   // $1 - id
		update.Status,           // $2 - status
		update.ProcessingTimeMs, // $3 - processing_time_ms
		update.ErrorCode,        // $4 - error_code
		update.ErrorMessage,     // $5 - error_message
		metadataJSON,            // $6 - metadata
		filename,                // $7 - filename
		mimeType,                // $8 - mime_type
		userID,                  // $9 - user_id
		fileSize,                // $10 - file_size
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// LineItemRow is one stored line item.
type LineItemRow struct {
	Position          int
	Statistic         string
	Label             string
	ValueCurrent      float64
	ValuePrior        float64
	YearCurrent       int
	YearPrior         int
	Unit              string
	ConfidenceCurrent float64
	ConfidencePrior   float64
	PageID            int
	Strategy          string
	SourceLine        string
	HasValues         bool
}

var lineItemColumns = []string{
	"id", "job_id", "position", "statistic", "label",
	"value_current", "value_prior", "year_current", "year_prior", "unit",
	"confidence_current", "confidence_prior", "page_id", "strategy",
	"source_line", "has_values",
}

// copyValues lays a row out in lineItemColumns order. Missing values and
// unresolved votes become NULL rather than zero.
func (r LineItemRow) copyValues(jobUUID string) []interface{} {
	var cur, prior, confCur, confPrior interface{}
	if r.HasValues {
		cur, prior = r.ValueCurrent, r.ValuePrior
		confCur, confPrior = sanitizeConfidence(r.ConfidenceCurrent), sanitizeConfidence(r.ConfidencePrior)
	}
	return []interface{}{
		uuid.New().String(),
		jobUUID,
		r.Position,
		nullString(r.Statistic),
		r.Label,
		cur,
		prior,
		nullInt(r.YearCurrent),
		nullInt(r.YearPrior),
		nullString(r.Unit),
		confCur,
		confPrior,
		r.PageID,
		r.Strategy,
		r.SourceLine,
		r.HasValues,
	}
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// copyLineItems bulk loads rows with COPY inside tx.
func copyLineItems(ctx context.Context, tx *sql.Tx, jobUUID string, rows []LineItemRow) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("accounts", "line_items", lineItemColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare COPY: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.copyValues(jobUUID)...); err != nil {
			return fmt.Errorf("failed to copy line item %d: %w", r.Position, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush COPY: %w", err)
	}
	return nil
}

// ListLineItems returns the stored items of a job in extraction order.
func (p *PostgresClient) ListLineItems(ctx context.Context, jobID string) ([]LineItemRow, error) {
	query := `
		SELECT
			position, COALESCE(statistic, ''), label,
			COALESCE(value_current, 0), COALESCE(value_prior, 0),
			COALESCE(year_current, 0), COALESCE(year_prior, 0), COALESCE(unit, ''),
			COALESCE(confidence_current, 0)::float8, COALESCE(confidence_prior, 0)::float8,
			page_id, strategy, COALESCE(source_line, ''), has_values
		FROM accounts.line_items
		WHERE job_id = $1::uuid
		ORDER BY position
	`

	rows, err := p.db.QueryContext(ctx, query, JobUUID(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var items []LineItemRow
	for rows.Next() {
		var r LineItemRow
		if err := rows.Scan(
			&r.Position, &r.Statistic, &r.Label,
			&r.ValueCurrent, &r.ValuePrior,
			&r.YearCurrent, &r.YearPrior, &r.Unit,
			&r.ConfidenceCurrent, &r.ConfidencePrior,
			&r.PageID, &r.Strategy, &r.SourceLine, &r.HasValues,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, user_id, filename, mime_type, file_size, status, source,
			unit, year_current, year_prior, pages, item_count,
			processing_time_ms, error_code, error_message, metadata,
			created_at, updated_at
		FROM accounts.extraction_jobs
		WHERE id = $1::uuid
	`

	var (
		id, userID, filename, status      string
		mimeType, source, unit            sql.NullString
		errorCode, errorMessage           sql.NullString
		fileSize, processingTimeMs        sql.NullInt64
		yearCurrent, yearPrior, itemCount sql.NullInt64
		pagesJSON, metadataJSON           []byte
		createdAt, updatedAt              time.Time
	)

	err := p.db.QueryRowContext(ctx, query, JobUUID(jobID)).Scan(
		&id, &userID, &filename, &mimeType, &fileSize, &status, &source,
		&unit, &yearCurrent, &yearPrior, &pagesJSON, &itemCount,
		&processingTimeMs, &errorCode, &errorMessage, &metadataJSON,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":        id,
		"userId":    userID,
		"filename":  filename,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if len(pagesJSON) > 0 {
		var pages []int
		if err := json.Unmarshal(pagesJSON, &pages); err == nil {
			result["pages"] = pages
		}
	}
	if mimeType.Valid {
		result["mimeType"] = mimeType.String
	}
	if fileSize.Valid {
		result["fileSize"] = fileSize.Int64
	}
	if source.Valid {
		result["source"] = source.String
	}
	if unit.Valid {
		result["unit"] = unit.String
	}
	if yearCurrent.Valid {
		result["yearCurrent"] = yearCurrent.Int64
	}
	if yearPrior.Valid {
		result["yearPrior"] = yearPrior.Int64
	}
	if itemCount.Valid {
		result["itemCount"] = itemCount.Int64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
