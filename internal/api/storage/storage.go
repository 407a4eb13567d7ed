package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/reachlabs/reach-be/internal/job"
	"github.com/reachlabs/reach-be/internal/queue"
	"github.com/reachlabs/reach-be/shared/postgresql"
)

// ActivityRecord is the read model for the activity listing endpoint.
type ActivityRecord struct {
	ActivityID        string         `db:"activity_id"`
	TenantID          string         `db:"tenant_id"`
	ContactID         sql.NullString `db:"contact_id"`
	JobID             string         `db:"job_id"`
	Channel           string         `db:"channel"`
	Content           string         `db:"content"`
	Succeeded         bool           `db:"succeeded"`
	ProviderMessageID sql.NullString `db:"provider_message_id"`
	CreatedAt         time.Time      `db:"created_at"`
}

// Storage handles database operations for the API service.
type Storage struct {
	db *sqlx.DB
}

// NewStorage creates a new Storage instance.
func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// InsertJob persists a new job envelope in WAITING state.
func (s *Storage) InsertJob(ctx context.Context, env *job.Envelope) error {
	query := `
		INSERT INTO jobs (
			job_id, tenant_id, kind, payload,
			status, attempt_count, enqueued_at, updated_at
		) VALUES (
			:job_id, :tenant_id, :kind, :payload,
			:status, :attempt_count, :enqueued_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, env); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// GetJob retrieves one job envelope by id.
func (s *Storage) GetJob(ctx context.Context, jobID string) (*job.Envelope, error) {
	query := `
		SELECT job_id, tenant_id, kind, payload, status,
		       attempt_count, worker_id, last_error, enqueued_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	var env job.Envelope
	if err := s.db.GetContext(ctx, &env, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, job.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &env, nil
}

// JobStatusCounts reads the number of jobs per lifecycle state, grouped by
// kind. Implements the queue health CountSource contract.
func (s *Storage) JobStatusCounts(ctx context.Context) (map[job.Kind]queue.Counts, error) {
	query := `
		SELECT kind, status, COUNT(*)
		FROM jobs
		GROUP BY kind, status
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	out := make(map[job.Kind]queue.Counts)
	for rows.Next() {
		var kind job.Kind
		var status string
		var count int
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job counts: %w", err)
		}

		c := out[kind]
		switch status {
		case job.StatusWaiting:
			c.Waiting = count
		case job.StatusActive:
			c.Active = count
		case job.StatusCompleted:
			c.Completed = count
		case job.StatusFailed:
			c.Failed = count
		}
		out[kind] = c
	}

	return out, rows.Err()
}

// ActivityFilter narrows the activity listing.
type ActivityFilter struct {
	TenantID  string
	Succeeded *bool
	PageSize  int
	Cursor    *ActivityCursor
}

// ActivityCursor is the keyset position for activity pagination.
type ActivityCursor struct {
	CreatedAt  time.Time
	ActivityID string
}

// ListActivities returns up to PageSize+1 activity rows for a tenant, newest
// first. The extra row signals that more results exist.
func (s *Storage) ListActivities(ctx context.Context, filter ActivityFilter) ([]ActivityRecord, error) {
	query := `
		SELECT activity_id, tenant_id, contact_id, job_id,
		       channel, content, succeeded, provider_message_id, created_at
		FROM activities
		WHERE tenant_id = $1
	`
	args := []interface{}{filter.TenantID}
	argIdx := 2

	if filter.Succeeded != nil {
		query += fmt.Sprintf(" AND succeeded = $%d", argIdx)
		args = append(args, *filter.Succeeded)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, activity_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ActivityID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, activity_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var records []ActivityRecord
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	return records, nil
}
