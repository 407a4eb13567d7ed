package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Metrics is one day's computed aggregate for one tenant.
type Metrics struct {
	TenantID            string
	Date                time.Time
	LeadsCount          int
	DealsWonCount       int
	RevenueTotal        int64
	AppointmentShowRate float64
}

// Store is the data-store contract the aggregator reads from and writes to.
type Store interface {
	CountNewContacts(ctx context.Context, tenantID string, from, to time.Time) (int, error)
	SumWonDeals(ctx context.Context, tenantID string, from, to time.Time) (count int, total int64, err error)
	AppointmentTotals(ctx context.Context, tenantID string, from, to time.Time) (completed, total int, err error)
	UpsertDailyMetric(ctx context.Context, tenantID string, date time.Time, leads, dealsWon int, revenue int64, showRate float64) error
}

// Aggregator computes per-tenant daily metrics and upserts one row per
// (tenant, date). The upsert is idempotent: reprocessing the same key
// overwrites, never double-counts.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(store Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// Run computes and stores the metrics for one tenant and one calendar day.
// The window is [00:00:00, 24:00:00) of the target date in the date's
// location. Any store read error aborts the invocation.
func (a *Aggregator) Run(ctx context.Context, tenantID string, date time.Time) (*Metrics, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	from := day
	to := day.AddDate(0, 0, 1)

	leads, err := a.store.CountNewContacts(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s/%s: %w", tenantID, day.Format("2006-01-02"), err)
	}

	dealsWon, revenue, err := a.store.SumWonDeals(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s/%s: %w", tenantID, day.Format("2006-01-02"), err)
	}

	completed, total, err := a.store.AppointmentTotals(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s/%s: %w", tenantID, day.Format("2006-01-02"), err)
	}

	// No appointments means a 0 rate, never NaN.
	showRate := 0.0
	if total > 0 {
		showRate = float64(completed) / float64(total)
	}

	m := &Metrics{
		TenantID:            tenantID,
		Date:                day,
		LeadsCount:          leads,
		DealsWonCount:       dealsWon,
		RevenueTotal:        revenue,
		AppointmentShowRate: showRate,
	}

	if err := a.store.UpsertDailyMetric(ctx, tenantID, day, m.LeadsCount, m.DealsWonCount, m.RevenueTotal, m.AppointmentShowRate); err != nil {
		return nil, fmt.Errorf("snapshot %s/%s: %w", tenantID, day.Format("2006-01-02"), err)
	}

	a.logger.Info("Daily snapshot stored",
		slog.String("tenant_id", tenantID),
		slog.String("date", day.Format("2006-01-02")),
		slog.Int("leads", m.LeadsCount),
		slog.Int("deals_won", m.DealsWonCount),
		slog.Int64("revenue", m.RevenueTotal),
		slog.Float64("show_rate", m.AppointmentShowRate),
	)

	return m, nil
}
