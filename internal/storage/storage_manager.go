/**
 * Storage Manager for the accounts extraction worker
 *
 * Stores a document's extraction atomically: the job summary and every
 * line item land in one transaction, so a retried job never leaves a
 * partial set of rows behind.
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ONSBigData/parsing-company-accounts/internal/voting"
)

// ErrJobNotFound is returned when no job row matches an id.
var ErrJobNotFound = errors.New("job not found")

// StorageManager coordinates job and line item persistence
type StorageManager struct {
	postgres *PostgresClient
}

// ExtractionInput is one document's extraction ready for storage.
type ExtractionInput struct {
	JobID       string
	Source      string
	Unit        string
	YearCurrent int
	YearPrior   int
	Pages       []int
	// Records are the band line items followed by the located statistics.
	Records []voting.Record
	Summary map[string]interface{}
}

// ExtractionOutput describes what was stored.
type ExtractionOutput struct {
	JobUUID   string
	ItemCount int
	StoredAt  time.Time
}

// NewStorageManager connects to PostgreSQL and makes sure the schema exists.
func NewStorageManager(ctx context.Context, postgresURL string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	if err := postgres.EnsureSchema(ctx); err != nil {
		postgres.Close()
		return nil, err
	}

	return &StorageManager{postgres: postgres}, nil
}

// RowsFromRecords numbers records in order for storage.
func RowsFromRecords(records []voting.Record) []LineItemRow {
	rows := make([]LineItemRow, 0, len(records))
	for i, r := range records {
		rows = append(rows, LineItemRow{
			Position:          i,
			Statistic:         r.Statistic,
			Label:             r.Label,
			ValueCurrent:      r.ValueCurrent,
			ValuePrior:        r.ValuePrior,
			YearCurrent:       r.YearCurrent,
			YearPrior:         r.YearPrior,
			Unit:              r.Unit,
			ConfidenceCurrent: r.ConfidenceCurrent,
			ConfidencePrior:   r.ConfidencePrior,
			PageID:            r.PageID,
			Strategy:          r.Strategy,
			SourceLine:        r.SourceLine,
			HasValues:         r.HasValues,
		})
	}
	return rows
}

// StoreExtraction replaces the stored line items of a job and records the
// document-level votes. The job row must already exist.
func (sm *StorageManager) StoreExtraction(ctx context.Context, input *ExtractionInput) (*ExtractionOutput, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}
	if input.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	jobUUID := JobUUID(input.JobID)

	pagesJSON, err := json.Marshal(input.Pages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pages: %w", err)
	}
	summary := input.Summary
	if summary == nil {
		summary = map[string]interface{}{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	summaryJSON = sanitizeJSONForPostgres(summaryJSON)

	tx, err := sm.postgres.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE accounts.extraction_jobs SET
			source = NULLIF($2, ''),
			unit = NULLIF($3, ''),
			year_current = NULLIF($4, 0),
			year_prior = NULLIF($5, 0),
			pages = $6::jsonb,
			item_count = $7,
			metadata = metadata || jsonb_build_object('summary', $8::jsonb),
			updated_at = NOW()
		WHERE id = $1::uuid
	`
	res, err := tx.ExecContext(ctx, query,
		jobUUID,
		input.Source,
		input.Unit,
		input.YearCurrent,
		input.YearPrior,
		pagesJSON,
		len(input.Records),
		summaryJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job summary: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrJobNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts.line_items WHERE job_id = $1::uuid`, jobUUID); err != nil {
		return nil, fmt.Errorf("failed to clear previous line items: %w", err)
	}

	if len(input.Records) > 0 {
		if err := copyLineItems(ctx, tx, jobUUID, RowsFromRecords(input.Records)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit extraction: %w", err)
	}

	return &ExtractionOutput{
		JobUUID:   jobUUID,
		ItemCount: len(input.Records),
		StoredAt:  time.Now(),
	}, nil
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves a job together with its stored line items.
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	job, err := sm.postgres.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	items, err := sm.postgres.ListLineItems(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job["lineItems"] = items
	return job, nil
}

// Ping checks database connectivity
func (sm *StorageManager) Ping(ctx context.Context) error {
	return sm.postgres.Ping(ctx)
}

// GetStats returns connection pool statistics
func (sm *StorageManager) GetStats() map[string]interface{} {
	pgStats := sm.postgres.GetStats()
	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
	}
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			return fmt.Errorf("failed to close PostgreSQL: %w", err)
		}
	}
	return nil
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes escape sequences JSONB rejects: \u0000 is
// dropped and other control characters become a space. OCR text carries
// both now and then.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
