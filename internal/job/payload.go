package job

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for snapshot target dates.
const DateLayout = "2006-01-02"

// ReminderPayload schedules an appointment reminder for one contact.
type ReminderPayload struct {
	ContactID   string `json:"contact_id"`
	Template    string `json:"template,omitempty"`
	Subject     string `json:"subject,omitempty"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

// NurturePayload sends one step of a lead-engagement sequence.
type NurturePayload struct {
	ContactID string `json:"contact_id"`
	Template  string `json:"template,omitempty"`
	Step      int    `json:"step,omitempty"`
}

// DunningPayload sends a payment-overdue follow-up. AmountCents is in minor
// currency units.
type DunningPayload struct {
	ContactID   string `json:"contact_id"`
	Template    string `json:"template,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	DaysOverdue int    `json:"days_overdue"`
}

// SnapshotPayload requests a daily metric snapshot. An empty Date means
// "today" in the store's timezone.
type SnapshotPayload struct {
	Date string `json:"date,omitempty"`
}

// DecodePayload parses raw into the typed variant for kind and checks the
// fields the processor cannot work without. A payload that fails here is a
// terminal error: redelivering the same bytes cannot succeed.
func DecodePayload(kind Kind, raw json.RawMessage) (any, error) {
	switch kind {
	case KindReminder:
		var p ReminderPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.ContactID == "" {
			return nil, fmt.Errorf("%w: reminder payload missing contact_id", ErrInvalidPayload)
		}
		return &p, nil

	case KindNurture:
		var p NurturePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.ContactID == "" {
			return nil, fmt.Errorf("%w: nurture payload missing contact_id", ErrInvalidPayload)
		}
		return &p, nil

	case KindDunning:
		var p DunningPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.ContactID == "" {
			return nil, fmt.Errorf("%w: dunning payload missing contact_id", ErrInvalidPayload)
		}
		if p.AmountCents < 0 {
			return nil, fmt.Errorf("%w: dunning amount_cents must not be negative", ErrInvalidPayload)
		}
		if p.DaysOverdue < 0 {
			return nil, fmt.Errorf("%w: dunning days_overdue must not be negative", ErrInvalidPayload)
		}
		return &p, nil

	case KindSnapshot:
		var p SnapshotPayload
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
		if p.Date != "" {
			if _, err := time.Parse(DateLayout, p.Date); err != nil {
				return nil, fmt.Errorf("%w: snapshot date must be YYYY-MM-DD: %v", ErrInvalidPayload, err)
			}
		}
		return &p, nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, kind)
}
