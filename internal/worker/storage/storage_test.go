package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/reachlabs/reach-be/internal/job"
	"github.com/reachlabs/reach-be/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStorage(sqlx.NewDb(db, "sqlmock"), logger.NewDefault().Logger), mock
}

func TestStorage_ClaimJob(t *testing.T) {
	t.Run("claims a waiting job", func(t *testing.T) {
		s, mock := newMockStorage(t)

		enqueuedAt := time.Now().UTC()
		rows := sqlmock.NewRows([]string{"job_id", "tenant_id", "kind", "payload", "attempt_count", "enqueued_at"}).
			AddRow("j-1", "tenant-1", "reminder", []byte(`{"contact_id":"c-1"}`), 0, enqueuedAt)

		mock.ExpectQuery("UPDATE jobs").
			WithArgs(job.StatusActive, "worker-abc", "j-1", job.StatusWaiting).
			WillReturnRows(rows)

		env, err := s.ClaimJob(context.Background(), "j-1", "worker-abc")
		require.NoError(t, err)

		assert.Equal(t, "j-1", env.JobID)
		assert.Equal(t, "tenant-1", env.TenantID)
		assert.Equal(t, job.KindReminder, env.Kind)
		assert.Equal(t, job.StatusActive, env.Status)
		assert.True(t, env.WorkerID.Valid)
		assert.Equal(t, "worker-abc", env.WorkerID.String)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("job not waiting", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery("UPDATE jobs").
			WillReturnError(sql.ErrNoRows)

		env, err := s.ClaimJob(context.Background(), "j-1", "worker-abc")
		require.Error(t, err)
		assert.ErrorIs(t, err, job.ErrJobAlreadyClaimed)
		assert.Nil(t, env)
	})

	t.Run("store failure", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery("UPDATE jobs").
			WillReturnError(errors.New("connection reset"))

		_, err := s.ClaimJob(context.Background(), "j-1", "worker-abc")
		require.Error(t, err)
		assert.NotErrorIs(t, err, job.ErrJobAlreadyClaimed)
	})
}

func TestStorage_ResolveContact(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStorage(t)

		rows := sqlmock.NewRows([]string{"contact_id", "tenant_id", "first_name", "last_name", "phone", "email"}).
			AddRow("c-1", "tenant-1", "Maria", "Lopez", "+15551234567", nil)

		mock.ExpectQuery("FROM contacts").
			WithArgs("tenant-1", "c-1").
			WillReturnRows(rows)

		c, err := s.ResolveContact(context.Background(), "tenant-1", "c-1")
		require.NoError(t, err)

		assert.Equal(t, "Maria", c.FirstName)
		assert.True(t, c.Phone.Valid)
		assert.False(t, c.Email.Valid)
	})

	t.Run("missing contact is terminal", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery("FROM contacts").
			WillReturnError(sql.ErrNoRows)

		_, err := s.ResolveContact(context.Background(), "tenant-1", "ghost")
		require.Error(t, err)
		assert.ErrorIs(t, err, job.ErrContactNotFound)
		assert.False(t, job.IsRetryable(err))
	})

	t.Run("read failure is retryable", func(t *testing.T) {
		s, mock := newMockStorage(t)

		mock.ExpectQuery("FROM contacts").
			WillReturnError(errors.New("connection reset"))

		_, err := s.ResolveContact(context.Background(), "tenant-1", "c-1")
		require.Error(t, err)
		assert.True(t, job.IsRetryable(err))
	})
}

func TestStorage_RecordActivity(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(0, 1))

	a := &Activity{
		TenantID:  "tenant-1",
		JobID:     "j-1",
		Channel:   "sms",
		Content:   "hello",
		Succeeded: true,
	}

	require.NoError(t, s.RecordActivity(context.Background(), a))

	// Missing id and timestamp are generated on insert
	assert.NotEmpty(t, a.ActivityID)
	assert.False(t, a.CreatedAt.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_UpsertDailyMetric(t *testing.T) {
	s, mock := newMockStorage(t)

	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO daily_metrics").
		WithArgs("tenant-1", "2026-08-24", 3, 2, int64(25000), 0.8).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertDailyMetric(context.Background(), "tenant-1", date, 3, 2, 25000, 0.8)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_ReleaseStaleJobs(t *testing.T) {
	s, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"job_id", "tenant_id", "kind"}).
		AddRow("j-1", "tenant-1", "reminder").
		AddRow("j-2", "tenant-2", "dunning")

	mock.ExpectQuery("UPDATE jobs").
		WithArgs(job.StatusWaiting, job.StatusActive, 30, 100).
		WillReturnRows(rows)

	msgs, err := s.ReleaseStaleJobs(context.Background(), 30*time.Second, 100)
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, "j-1", msgs[0].JobID)
	assert.Equal(t, job.KindReminder, msgs[0].Kind)
	assert.Equal(t, job.KindDunning, msgs[1].Kind)
}

func TestStorage_PruneTerminalJobs(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectExec("DELETE FROM jobs").
		WithArgs("reminder", job.StatusCompleted, job.StatusFailed, 1000).
		WillReturnResult(sqlmock.NewResult(0, 7))

	pruned, err := s.PruneTerminalJobs(context.Background(), job.KindReminder, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pruned)
}
