package job

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Job lifecycle states
const (
	StatusWaiting   = "WAITING"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Envelope is the durable job record shared by every queue. The tenant id
// and kind are immutable once enqueued; attempt_count and status are owned
// by the worker runtime.
type Envelope struct {
	JobID        string          `db:"job_id"`
	TenantID     string          `db:"tenant_id"`
	Kind         Kind            `db:"kind"`
	Payload      json.RawMessage `db:"payload"`
	Status       string          `db:"status"`
	AttemptCount int             `db:"attempt_count"`
	WorkerID     sql.NullString  `db:"worker_id"`
	LastError    sql.NullString  `db:"last_error"`
	EnqueuedAt   time.Time       `db:"enqueued_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// Message is the broker-side envelope. The row in Postgres is the source of
// truth; the message only carries enough to locate and claim it.
type Message struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
	Kind     Kind   `json:"kind"`

	DeliveryTag uint64 `json:"-"`
}
