package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_Valid(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		valid bool
	}{
		{name: "reminder", kind: KindReminder, valid: true},
		{name: "nurture", kind: KindNurture, valid: true},
		{name: "dunning", kind: KindDunning, valid: true},
		{name: "snapshot", kind: KindSnapshot, valid: true},
		{name: "unknown kind", kind: Kind("sync-crm"), valid: false},
		{name: "empty kind", kind: Kind(""), valid: false},
		{name: "case sensitive", kind: Kind("Reminder"), valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.kind.Valid())
		})
	}
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 4)
	for _, k := range kinds {
		assert.True(t, k.Valid())
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     string
		wantErr bool
		check   func(t *testing.T, decoded any)
	}{
		{
			name: "valid reminder",
			kind: KindReminder,
			raw:  `{"contact_id":"c-1","subject":"Checkup","scheduled_at":"2026-03-01T10:00:00Z"}`,
			check: func(t *testing.T, decoded any) {
				p, ok := decoded.(*ReminderPayload)
				require.True(t, ok)
				assert.Equal(t, "c-1", p.ContactID)
				assert.Equal(t, "Checkup", p.Subject)
			},
		},
		{
			name:    "reminder missing contact_id",
			kind:    KindReminder,
			raw:     `{"subject":"Checkup"}`,
			wantErr: true,
		},
		{
			name: "valid nurture",
			kind: KindNurture,
			raw:  `{"contact_id":"c-2","step":3}`,
			check: func(t *testing.T, decoded any) {
				p, ok := decoded.(*NurturePayload)
				require.True(t, ok)
				assert.Equal(t, 3, p.Step)
			},
		},
		{
			name:    "nurture missing contact_id",
			kind:    KindNurture,
			raw:     `{"step":1}`,
			wantErr: true,
		},
		{
			name: "valid dunning",
			kind: KindDunning,
			raw:  `{"contact_id":"c-3","amount_cents":5000,"days_overdue":10}`,
			check: func(t *testing.T, decoded any) {
				p, ok := decoded.(*DunningPayload)
				require.True(t, ok)
				assert.Equal(t, int64(5000), p.AmountCents)
				assert.Equal(t, 10, p.DaysOverdue)
			},
		},
		{
			name:    "dunning negative amount",
			kind:    KindDunning,
			raw:     `{"contact_id":"c-3","amount_cents":-100}`,
			wantErr: true,
		},
		{
			name:    "dunning negative days overdue",
			kind:    KindDunning,
			raw:     `{"contact_id":"c-3","amount_cents":100,"days_overdue":-1}`,
			wantErr: true,
		},
		{
			name: "snapshot with date",
			kind: KindSnapshot,
			raw:  `{"date":"2026-08-24"}`,
			check: func(t *testing.T, decoded any) {
				p, ok := decoded.(*SnapshotPayload)
				require.True(t, ok)
				assert.Equal(t, "2026-08-24", p.Date)
			},
		},
		{
			name: "snapshot empty payload",
			kind: KindSnapshot,
			raw:  `{}`,
			check: func(t *testing.T, decoded any) {
				p, ok := decoded.(*SnapshotPayload)
				require.True(t, ok)
				assert.Empty(t, p.Date)
			},
		},
		{
			name:    "snapshot bad date format",
			kind:    KindSnapshot,
			raw:     `{"date":"24/08/2026"}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			kind:    KindReminder,
			raw:     `{"contact_id":`,
			wantErr: true,
		},
		{
			name:    "unknown kind",
			kind:    Kind("sync-crm"),
			raw:     `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodePayload(tt.kind, json.RawMessage(tt.raw))

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPayload)
				assert.Nil(t, decoded)
			} else {
				require.NoError(t, err)
				require.NotNil(t, decoded)
				tt.check(t, decoded)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "provider unavailable",
			err:       ErrProviderUnavailable,
			retryable: true,
		},
		{
			name:      "wrapped provider unavailable",
			err:       fmt.Errorf("sms send: %w", ErrProviderUnavailable),
			retryable: true,
		},
		{
			name:      "explicit transient wrapper",
			err:       Transient(errors.New("db connection reset")),
			retryable: true,
		},
		{
			name:      "wrapped transient wrapper",
			err:       fmt.Errorf("resolve contact: %w", Transient(errors.New("timeout"))),
			retryable: true,
		},
		{
			name:      "provider rejected is terminal",
			err:       ErrProviderRejected,
			retryable: false,
		},
		{
			name:      "invalid payload is terminal",
			err:       ErrInvalidPayload,
			retryable: false,
		},
		{
			name:      "contact not found is terminal",
			err:       ErrContactNotFound,
			retryable: false,
		},
		{
			name:      "no deliverable address is terminal",
			err:       ErrNoDeliverableAddress,
			retryable: false,
		},
		{
			name:      "invalid address is terminal",
			err:       ErrInvalidAddress,
			retryable: false,
		},
		{
			name:      "plain error is terminal",
			err:       errors.New("something else"),
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("socket closed")
	err := Transient(inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "transient: socket closed")
}
