package queue

import (
	"time"

	"github.com/reachlabs/reach-be/internal/config"
	"github.com/reachlabs/reach-be/internal/job"
	"github.com/reachlabs/reach-be/shared/rabbitmq"
)

// Spec describes one durable queue. Queue identity is fixed at startup:
// every job kind maps to exactly one queue and the set never changes while
// the process runs.
type Spec struct {
	Name        string
	Kind        job.Kind
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
	Retention   int
}

// Registry holds the queue set. It is constructed once at process start and
// passed by reference to producers and workers; there is no ambient global
// queue state.
type Registry struct {
	specs map[job.Kind]Spec
	order []job.Kind
}

// NewRegistry builds the four fixed queues from configuration.
func NewRegistry(cfg *config.QueuesConfig) *Registry {
	specs := map[job.Kind]Spec{
		job.KindReminder: fromConfig("reminders", job.KindReminder, cfg.Reminders),
		job.KindNurture:  fromConfig("nurture", job.KindNurture, cfg.Nurture),
		job.KindDunning:  fromConfig("dunning", job.KindDunning, cfg.Dunning),
		job.KindSnapshot: fromConfig("snapshots", job.KindSnapshot, cfg.Snapshots),
	}

	return &Registry{
		specs: specs,
		order: job.Kinds(),
	}
}

func fromConfig(name string, kind job.Kind, qc config.QueueConfig) Spec {
	return Spec{
		Name:        name,
		Kind:        kind,
		Concurrency: qc.Concurrency,
		MaxAttempts: qc.MaxAttempts,
		BackoffBase: qc.BackoffBase,
		Retention:   qc.Retention,
	}
}

// Spec returns the queue spec for a job kind.
func (r *Registry) Spec(kind job.Kind) (Spec, bool) {
	s, ok := r.specs[kind]
	return s, ok
}

// All returns every queue spec in registration order.
func (r *Registry) All() []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.specs[k])
	}
	return out
}

// Bindings returns the broker queue declarations. The routing key for each
// queue is its job kind.
func (r *Registry) Bindings() []rabbitmq.QueueBinding {
	specs := r.All()
	out := make([]rabbitmq.QueueBinding, 0, len(specs))
	for _, s := range specs {
		out = append(out, rabbitmq.QueueBinding{Name: s.Name, RoutingKey: string(s.Kind)})
	}
	return out
}
