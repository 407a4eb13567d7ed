package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the queue set. All vectors are
// labeled by queue name.
type Metrics struct {
	JobsEnqueued  *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobsRetried   *prometheus.CounterVec
	QueueWaiting  *prometheus.GaugeVec
	QueueActive   *prometheus.GaugeVec
}

// NewMetrics creates and registers the queue collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_jobs_enqueued_total",
			Help: "Jobs accepted by the enqueue API.",
		}, []string{"queue"}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_jobs_completed_total",
			Help: "Jobs that reached the completed state.",
		}, []string{"queue"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_jobs_failed_total",
			Help: "Jobs that reached the terminal failed state.",
		}, []string{"queue"}),
		JobsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outreach_jobs_retried_total",
			Help: "Retry attempts consumed after a transient failure.",
		}, []string{"queue"}),
		QueueWaiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outreach_queue_waiting_jobs",
			Help: "Jobs currently waiting, per queue.",
		}, []string{"queue"}),
		QueueActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outreach_queue_active_jobs",
			Help: "Jobs currently being processed, per queue.",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.JobsEnqueued,
		m.JobsCompleted,
		m.JobsFailed,
		m.JobsRetried,
		m.QueueWaiting,
		m.QueueActive,
	)

	return m
}
