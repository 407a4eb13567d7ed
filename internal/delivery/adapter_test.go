package delivery

import (
	"context"
	"testing"

	"github.com/reachlabs/reach-be/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider records how many times Send was invoked.
type countingProvider struct {
	calls int
	id    string
	err   error
}

func (p *countingProvider) Send(_ context.Context, _, _ string) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.id, nil
}

func TestDispatcher_Deliver(t *testing.T) {
	tests := []struct {
		name          string
		channel       Channel
		address       string
		smsErr        error
		emailErr      error
		wantErr       error
		wantSMSCalls  int
		wantMailCalls int
		wantMessageID string
	}{
		{
			name:          "sms success",
			channel:       ChannelSMS,
			address:       "+15551234567",
			wantSMSCalls:  1,
			wantMessageID: "SM123",
		},
		{
			name:          "sms accepts formatted number",
			channel:       ChannelSMS,
			address:       "+1 (555) 123-4567",
			wantSMSCalls:  1,
			wantMessageID: "SM123",
		},
		{
			name:    "sms invalid address never reaches provider",
			channel: ChannelSMS,
			address: "not-a-phone",
			wantErr: job.ErrInvalidAddress,
		},
		{
			name:    "sms too short",
			channel: ChannelSMS,
			address: "+1234",
			wantErr: job.ErrInvalidAddress,
		},
		{
			name:          "email success",
			channel:       ChannelEmail,
			address:       "lead@example.com",
			wantMailCalls: 1,
			wantMessageID: "EM456",
		},
		{
			name:    "email invalid address never reaches provider",
			channel: ChannelEmail,
			address: "no-at-sign",
			wantErr: job.ErrInvalidAddress,
		},
		{
			name:    "email missing domain dot",
			channel: ChannelEmail,
			address: "lead@example",
			wantErr: job.ErrInvalidAddress,
		},
		{
			name:    "unsupported channel",
			channel: Channel("fax"),
			address: "+15551234567",
			wantErr: job.ErrInvalidAddress,
		},
		{
			name:         "provider error passes through",
			channel:      ChannelSMS,
			address:      "+15551234567",
			smsErr:       job.ErrProviderUnavailable,
			wantErr:      job.ErrProviderUnavailable,
			wantSMSCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sms := &countingProvider{id: "SM123", err: tt.smsErr}
			email := &countingProvider{id: "EM456", err: tt.emailErr}
			d := NewDispatcher(sms, email)

			result, err := d.Deliver(context.Background(), tt.channel, tt.address, "hello")

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, result.Succeeded)
			} else {
				require.NoError(t, err)
				assert.True(t, result.Succeeded)
				assert.Equal(t, tt.wantMessageID, result.ProviderMessageID)
			}

			assert.Equal(t, tt.wantSMSCalls, sms.calls)
			assert.Equal(t, tt.wantMailCalls, email.calls)
		})
	}
}

func TestFakeAdapter(t *testing.T) {
	t.Run("records calls and succeeds by default", func(t *testing.T) {
		fake := NewFakeAdapter()

		result, err := fake.Deliver(context.Background(), ChannelSMS, "+15551234567", "hi")
		require.NoError(t, err)
		assert.True(t, result.Succeeded)
		assert.Equal(t, "fake-1", result.ProviderMessageID)

		calls := fake.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, ChannelSMS, calls[0].Channel)
		assert.Equal(t, "+15551234567", calls[0].Address)
		assert.Equal(t, "hi", calls[0].Content)
	})

	t.Run("consumes scripted errors in order", func(t *testing.T) {
		fake := NewFakeAdapter()
		fake.Errs = []error{job.ErrProviderUnavailable, nil}

		_, err := fake.Deliver(context.Background(), ChannelEmail, "a@b.co", "one")
		assert.ErrorIs(t, err, job.ErrProviderUnavailable)

		result, err := fake.Deliver(context.Background(), ChannelEmail, "a@b.co", "two")
		require.NoError(t, err)
		assert.Equal(t, "fake-2", result.ProviderMessageID)
	})
}
