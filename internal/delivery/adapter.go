package delivery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/reachlabs/reach-be/internal/job"
)

// Channel is a delivery medium for outbound messages.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	// ChannelNone is recorded on activity rows when no channel was usable.
	ChannelNone Channel = "none"
)

// Result is the outcome of a single provider invocation.
type Result struct {
	Succeeded         bool
	ProviderMessageID string
}

// Adapter presents a single "send a message to an address over a channel"
// capability regardless of the underlying provider. Implementations make at
// most one provider call per invocation and never retry internally; retry
// belongs to the worker runtime.
type Adapter interface {
	Deliver(ctx context.Context, channel Channel, address, content string) (Result, error)
}

// Provider sends one message over one concrete medium and returns the
// provider-assigned message id.
type Provider interface {
	Send(ctx context.Context, address, content string) (string, error)
}

// Dispatcher routes Deliver calls to the provider for the requested channel,
// failing fast on malformed addresses without touching the provider.
type Dispatcher struct {
	sms   Provider
	email Provider
}

// NewDispatcher returns an Adapter backed by the given providers.
func NewDispatcher(sms, email Provider) *Dispatcher {
	return &Dispatcher{sms: sms, email: email}
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Deliver validates the address for the channel and invokes the matching
// provider exactly once.
func (d *Dispatcher) Deliver(ctx context.Context, channel Channel, address, content string) (Result, error) {
	var p Provider
	switch channel {
	case ChannelSMS:
		if !validPhone(address) {
			return Result{}, fmt.Errorf("%w: %q is not a plausible phone number", job.ErrInvalidAddress, address)
		}
		p = d.sms
	case ChannelEmail:
		if !validEmail(address) {
			return Result{}, fmt.Errorf("%w: %q is not a plausible email address", job.ErrInvalidAddress, address)
		}
		p = d.email
	default:
		return Result{}, fmt.Errorf("%w: unsupported channel %q", job.ErrInvalidAddress, channel)
	}

	id, err := p.Send(ctx, address, content)
	if err != nil {
		return Result{}, err
	}
	return Result{Succeeded: true, ProviderMessageID: id}, nil
}

func validPhone(address string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(address)
	return phonePattern.MatchString(cleaned)
}

func validEmail(address string) bool {
	return emailPattern.MatchString(address)
}
