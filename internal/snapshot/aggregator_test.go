package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reachlabs/reach-be/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upsertedRow struct {
	tenantID string
	date     time.Time
	leads    int
	dealsWon int
	revenue  int64
	showRate float64
}

// fakeSnapshotStore serves canned aggregates keyed by (tenant, date) and
// records upserts like the real table would: last write per key wins.
type fakeSnapshotStore struct {
	leads        int
	dealsWon     int
	revenue      int64
	completed    int
	appointments int

	readErr   error
	upsertErr error

	rows map[string]upsertedRow

	gotFrom time.Time
	gotTo   time.Time
}

func (s *fakeSnapshotStore) CountNewContacts(_ context.Context, _ string, from, to time.Time) (int, error) {
	s.gotFrom, s.gotTo = from, to
	if s.readErr != nil {
		return 0, s.readErr
	}
	return s.leads, nil
}

func (s *fakeSnapshotStore) SumWonDeals(_ context.Context, _ string, _, _ time.Time) (int, int64, error) {
	if s.readErr != nil {
		return 0, 0, s.readErr
	}
	return s.dealsWon, s.revenue, nil
}

func (s *fakeSnapshotStore) AppointmentTotals(_ context.Context, _ string, _, _ time.Time) (int, int, error) {
	if s.readErr != nil {
		return 0, 0, s.readErr
	}
	return s.completed, s.appointments, nil
}

func (s *fakeSnapshotStore) UpsertDailyMetric(_ context.Context, tenantID string, date time.Time, leads, dealsWon int, revenue int64, showRate float64) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	if s.rows == nil {
		s.rows = map[string]upsertedRow{}
	}
	key := tenantID + "|" + date.Format("2006-01-02")
	s.rows[key] = upsertedRow{
		tenantID: tenantID,
		date:     date,
		leads:    leads,
		dealsWon: dealsWon,
		revenue:  revenue,
		showRate: showRate,
	}
	return nil
}

func TestAggregator_Run(t *testing.T) {
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	t.Run("computes and stores one row", func(t *testing.T) {
		store := &fakeSnapshotStore{
			leads:        3,
			dealsWon:     2,
			revenue:      25000,
			completed:    4,
			appointments: 5,
		}
		a := NewAggregator(store, logger.NewDefault().Logger)

		m, err := a.Run(context.Background(), "tenant-1", date)
		require.NoError(t, err)

		assert.Equal(t, 3, m.LeadsCount)
		assert.Equal(t, 2, m.DealsWonCount)
		assert.Equal(t, int64(25000), m.RevenueTotal)
		assert.InDelta(t, 0.8, m.AppointmentShowRate, 1e-9)

		require.Len(t, store.rows, 1)
		row := store.rows["tenant-1|2026-08-24"]
		assert.Equal(t, 3, row.leads)
		assert.Equal(t, 2, row.dealsWon)
		assert.Equal(t, int64(25000), row.revenue)
		assert.InDelta(t, 0.8, row.showRate, 1e-9)
	})

	t.Run("window covers the whole calendar day", func(t *testing.T) {
		store := &fakeSnapshotStore{}
		a := NewAggregator(store, logger.NewDefault().Logger)

		// Mid-day timestamp still snaps to [00:00, next midnight)
		_, err := a.Run(context.Background(), "tenant-1", date.Add(13*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, date, store.gotFrom)
		assert.Equal(t, date.AddDate(0, 0, 1), store.gotTo)
	})

	t.Run("zero appointments yields zero show rate", func(t *testing.T) {
		store := &fakeSnapshotStore{leads: 1, appointments: 0}
		a := NewAggregator(store, logger.NewDefault().Logger)

		m, err := a.Run(context.Background(), "tenant-1", date)
		require.NoError(t, err)
		assert.Zero(t, m.AppointmentShowRate)
	})

	t.Run("reprocessing the same day overwrites instead of double counting", func(t *testing.T) {
		store := &fakeSnapshotStore{leads: 3, dealsWon: 2, revenue: 25000, completed: 4, appointments: 5}
		a := NewAggregator(store, logger.NewDefault().Logger)

		_, err := a.Run(context.Background(), "tenant-1", date)
		require.NoError(t, err)

		// Data changed between runs; the second run replaces the row
		store.leads = 5
		_, err = a.Run(context.Background(), "tenant-1", date)
		require.NoError(t, err)

		require.Len(t, store.rows, 1)
		assert.Equal(t, 5, store.rows["tenant-1|2026-08-24"].leads)
	})

	t.Run("separate tenants keep separate rows", func(t *testing.T) {
		store := &fakeSnapshotStore{leads: 1}
		a := NewAggregator(store, logger.NewDefault().Logger)

		_, err := a.Run(context.Background(), "tenant-1", date)
		require.NoError(t, err)
		_, err = a.Run(context.Background(), "tenant-2", date)
		require.NoError(t, err)

		assert.Len(t, store.rows, 2)
	})

	t.Run("read failure aborts without writing", func(t *testing.T) {
		store := &fakeSnapshotStore{readErr: errors.New("relation does not exist")}
		a := NewAggregator(store, logger.NewDefault().Logger)

		m, err := a.Run(context.Background(), "tenant-1", date)
		require.Error(t, err)
		assert.Nil(t, m)
		assert.Empty(t, store.rows)
	})

	t.Run("upsert failure surfaces", func(t *testing.T) {
		store := &fakeSnapshotStore{upsertErr: errors.New("deadlock detected")}
		a := NewAggregator(store, logger.NewDefault().Logger)

		_, err := a.Run(context.Background(), "tenant-1", date)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadlock detected")
	})
}
