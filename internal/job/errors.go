package job

import "errors"

var (
	// ErrInvalidJobRequest is returned by the enqueue API when the tenant id
	// is empty or the job kind is unrecognized. Nothing reaches a queue.
	ErrInvalidJobRequest = errors.New("invalid job request")

	// ErrJobNotFound is returned when a job row cannot be found
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that
	// is not in WAITING status (another worker owns it, or it already
	// reached a terminal state)
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in WAITING status")

	// ErrInvalidPayload is returned when a payload does not decode into the
	// typed variant for its kind. Terminal: redelivery cannot fix it.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrContactNotFound is returned when the payload references a contact
	// that does not exist for the tenant. Terminal.
	ErrContactNotFound = errors.New("contact not found")

	// ErrNoDeliverableAddress is returned when a contact has neither a
	// phone number nor an email address. Terminal; no adapter call is made.
	ErrNoDeliverableAddress = errors.New("contact has no deliverable address")

	// ErrInvalidAddress is returned by the channel adapter when an address
	// is not syntactically plausible for the channel. Terminal; the
	// provider is never called.
	ErrInvalidAddress = errors.New("address not valid for channel")

	// ErrProviderRejected is returned when the provider refused the message
	// (4xx-equivalent). Terminal.
	ErrProviderRejected = errors.New("provider rejected message")

	// ErrProviderUnavailable is returned on provider timeouts and
	// 5xx-equivalent responses. Transient; safe to retry.
	ErrProviderUnavailable = errors.New("provider temporarily unavailable")
)

// TransientError wraps errors that should consume a retry attempt rather
// than fail the job terminally.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// IsRetryable reports whether err should consume a retry attempt. Provider
// unavailability is always retryable; everything else must be explicitly
// wrapped with Transient.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrProviderUnavailable) {
		return true
	}
	var te *TransientError
	return errors.As(err, &te)
}
