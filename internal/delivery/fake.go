package delivery

import (
	"context"
	"fmt"
	"sync"
)

// FakeCall records one Deliver invocation against the fake adapter.
type FakeCall struct {
	Channel Channel
	Address string
	Content string
}

// FakeAdapter is an in-memory Adapter for tests. Errors are consumed from
// Errs in call order; once the slice is exhausted, calls succeed.
type FakeAdapter struct {
	mu    sync.Mutex
	calls []FakeCall
	Errs  []error
}

// NewFakeAdapter returns an empty fake adapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{}
}

// Deliver records the call and returns the next scripted error, or a
// successful result with a deterministic message id.
func (f *FakeAdapter) Deliver(_ context.Context, channel Channel, address, content string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, FakeCall{Channel: channel, Address: address, Content: content})

	if len(f.Errs) > 0 {
		err := f.Errs[0]
		f.Errs = f.Errs[1:]
		if err != nil {
			return Result{}, err
		}
	}

	return Result{
		Succeeded:         true,
		ProviderMessageID: fmt.Sprintf("fake-%d", len(f.calls)),
	}, nil
}

// Calls returns a copy of the recorded invocations.
func (f *FakeAdapter) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}
