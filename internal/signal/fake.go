package signal

import (
	"context"
	"sync"

	"github.com/bizsim/agegate/internal/models"
)

// FakeBridge queues scripted results, mirroring the platform's fake manager
// used in instrumented builds. Once the queue drains, the last result
// repeats.
type FakeBridge struct {
	mu      sync.Mutex
	results []fakeResult
	calls   int
}

type fakeResult struct {
	signal *models.RawSignal
	err    error
}

func NewFakeBridge() *FakeBridge { return &FakeBridge{} }

// QueueSignal appends a scripted success.
func (f *FakeBridge) QueueSignal(raw models.RawSignal) *FakeBridge {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fakeResult{signal: &raw})
	return f
}

// QueueError appends a scripted failure.
func (f *FakeBridge) QueueError(err *BridgeError) *FakeBridge {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fakeResult{err: err})
	return f
}

// Calls reports how many checks have been made.
func (f *FakeBridge) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeBridge) Check(ctx context.Context) (*models.RawSignal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil, internalError("fake bridge has no scripted results")
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	sig := *r.signal
	return &sig, nil
}
