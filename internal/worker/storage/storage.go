package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/reachlabs/reach-be/internal/job"
)

// Contact is the resolved delivery target for a message job.
type Contact struct {
	ContactID string         `db:"contact_id"`
	TenantID  string         `db:"tenant_id"`
	FirstName string         `db:"first_name"`
	LastName  string         `db:"last_name"`
	Phone     sql.NullString `db:"phone"`
	Email     sql.NullString `db:"email"`
}

// Activity is the audit-trail record proving a delivery attempt occurred.
// Written exactly once per terminal job and never mutated afterward.
type Activity struct {
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

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimJob moves a job from WAITING to ACTIVE for one worker using an
// optimistic update. A job that is not WAITING belongs to another worker or
// already finished; claiming it fails with ErrJobAlreadyClaimed.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*job.Envelope, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = $2,
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING job_id, tenant_id, kind, payload, attempt_count, enqueued_at
	`

	var env job.Envelope
	err := s.db.QueryRowContext(ctx, query, job.StatusActive, workerID, jobID, job.StatusWaiting).Scan(
		&env.JobID,
		&env.TenantID,
		&env.Kind,
		&env.Payload,
		&env.AttemptCount,
		&env.EnqueuedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, job.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	env.Status = job.StatusActive
	env.WorkerID = sql.NullString{String: workerID, Valid: true}

	return &env, nil
}

// RecordAttempt persists the attempt counter before an execution attempt.
func (s *Storage) RecordAttempt(ctx context.Context, jobID string, attempt int) error {
	query := `
		UPDATE jobs
		SET attempt_count = $2,
		    updated_at = NOW()
		WHERE job_id = $1
	`

	if _, err := s.db.ExecContext(ctx, query, jobID, attempt); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// CompleteJob transitions a job to COMPLETED.
func (s *Storage) CompleteJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE job_id = $1
	`

	if _, err := s.db.ExecContext(ctx, query, jobID, job.StatusCompleted); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// FailJob transitions a job to the terminal FAILED state. The row is
// retained for operator inspection, not dropped.
func (s *Storage) FailJob(ctx context.Context, jobID, lastError string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    last_error = $3,
		    updated_at = NOW()
		WHERE job_id = $1
	`

	if _, err := s.db.ExecContext(ctx, query, jobID, job.StatusFailed, lastError); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the heartbeat timestamp of an active job so the
// reaper does not reclaim it.
func (s *Storage) UpdateHeartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, job.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		s.logger.Warn("Heartbeat update - no rows affected (job may not be active)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// ResolveContact loads the delivery target for a tenant. A missing contact
// is terminal: retrying cannot fix an absent record.
func (s *Storage) ResolveContact(ctx context.Context, tenantID, contactID string) (*Contact, error) {
	query := `
		SELECT contact_id, tenant_id, first_name, last_name, phone, email
		FROM contacts
		WHERE tenant_id = $1 AND contact_id = $2
	`

	var c Contact
	if err := s.db.GetContext(ctx, &c, query, tenantID, contactID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: contact %s for tenant %s", job.ErrContactNotFound, contactID, tenantID)
		}
		// Store read failures are transient: the row may exist once the
		// database recovers.
		return nil, job.Transient(fmt.Errorf("failed to resolve contact: %w", err))
	}

	return &c, nil
}

// RecordActivity inserts one immutable activity row.
func (s *Storage) RecordActivity(ctx context.Context, a *Activity) error {
	if a.ActivityID == "" {
		a.ActivityID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activities (
			activity_id, tenant_id, contact_id, job_id,
			channel, content, succeeded, provider_message_id, created_at
		) VALUES (
			:activity_id, :tenant_id, :contact_id, :job_id,
			:channel, :content, :succeeded, :provider_message_id, :created_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}

	s.logger.Info("Activity recorded",
		slog.String("job_id", a.JobID),
		slog.String("channel", a.Channel),
		slog.Bool("succeeded", a.Succeeded),
	)

	return nil
}

// CountNewContacts counts contacts created inside the window.
func (s *Storage) CountNewContacts(ctx context.Context, tenantID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM contacts
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
	`

	var count int
	if err := s.db.GetContext(ctx, &count, query, tenantID, from, to); err != nil {
		return 0, fmt.Errorf("failed to count new contacts: %w", err)
	}
	return count, nil
}

// SumWonDeals returns the count and total value (minor currency units) of
// deals that transitioned to won inside the window.
func (s *Storage) SumWonDeals(ctx context.Context, tenantID string, from, to time.Time) (count int, total int64, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(value_cents), 0)
		FROM deals
		WHERE tenant_id = $1 AND status = 'won' AND won_at >= $2 AND won_at < $3
	`

	if err := s.db.QueryRowContext(ctx, query, tenantID, from, to).Scan(&count, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to sum won deals: %w", err)
	}
	return count, total, nil
}

// AppointmentTotals returns completed and scheduled appointment counts for
// the window.
func (s *Storage) AppointmentTotals(ctx context.Context, tenantID string, from, to time.Time) (completed, total int, err error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'completed'), COUNT(*)
		FROM appointments
		WHERE tenant_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
	`

	if err := s.db.QueryRowContext(ctx, query, tenantID, from, to).Scan(&completed, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return completed, total, nil
}

// UpsertDailyMetric writes one (tenant, date) metric row. Reprocessing the
// same key overwrites rather than duplicates.
func (s *Storage) UpsertDailyMetric(ctx context.Context, tenantID string, date time.Time, leads, dealsWon int, revenue int64, showRate float64) error {
	query := `
		INSERT INTO daily_metrics (
			tenant_id, metric_date, leads_count, deals_won_count,
			revenue_total, appointment_show_rate, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (tenant_id, metric_date) DO UPDATE
		SET leads_count = EXCLUDED.leads_count,
		    deals_won_count = EXCLUDED.deals_won_count,
		    revenue_total = EXCLUDED.revenue_total,
		    appointment_show_rate = EXCLUDED.appointment_show_rate,
		    updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, tenantID, date.Format("2006-01-02"), leads, dealsWon, revenue, showRate); err != nil {
		return fmt.Errorf("failed to upsert daily metric: %w", err)
	}
	return nil
}

// ListTenants returns every tenant id. Used by the snapshot scheduler.
func (s *Storage) ListTenants(ctx context.Context) ([]string, error) {
	var tenants []string
	if err := s.db.SelectContext(ctx, &tenants, `SELECT tenant_id FROM tenants ORDER BY tenant_id`); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// ReleaseStaleJobs resets ACTIVE jobs whose heartbeat is older than the
// threshold back to WAITING and returns their broker messages for
// republishing. The attempt count is preserved, so reclaimed executions
// keep counting against the retry budget.
func (s *Storage) ReleaseStaleJobs(ctx context.Context, threshold time.Duration, limit int) ([]job.Message, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE job_id IN (
			SELECT job_id FROM jobs
			WHERE status = $2 AND last_heartbeat_at < NOW() - ($3 * INTERVAL '1 second')
			LIMIT $4
		)
		RETURNING job_id, tenant_id, kind
	`

	return s.collectMessages(ctx, query, job.StatusWaiting, job.StatusActive, int(threshold.Seconds()), limit)
}

// WaitingJobsOlderThan returns WAITING jobs that have sat unclaimed past
// the threshold, for republishing. Covers messages lost between the row
// insert and a failed broker publish.
func (s *Storage) WaitingJobsOlderThan(ctx context.Context, threshold time.Duration, limit int) ([]job.Message, error) {
	query := `
		SELECT job_id, tenant_id, kind
		FROM jobs
		WHERE status = $1 AND updated_at < NOW() - ($2 * INTERVAL '1 second')
		ORDER BY enqueued_at ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, job.StatusWaiting, int(threshold.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale waiting jobs: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// PruneTerminalJobs deletes completed and failed rows beyond the retention
// count for one kind, oldest first.
func (s *Storage) PruneTerminalJobs(ctx context.Context, kind job.Kind, keep int) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE job_id IN (
			SELECT job_id FROM jobs
			WHERE kind = $1 AND status IN ($2, $3)
			ORDER BY updated_at DESC
			OFFSET $4
		)
	`

	result, err := s.db.ExecContext(ctx, query, kind, job.StatusCompleted, job.StatusFailed, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return rows, nil
}

func (s *Storage) collectMessages(ctx context.Context, query string, args ...any) ([]job.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to release stale jobs: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]job.Message, error) {
	var out []job.Message
	for rows.Next() {
		var m job.Message
		if err := rows.Scan(&m.JobID, &m.TenantID, &m.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan job message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
