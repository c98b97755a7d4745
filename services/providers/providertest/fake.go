package providertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/providers"
)

// FakeProvider implements providers.Provider for tests
type FakeProvider struct {
	// GenerateFunc overrides the default behavior when set
	GenerateFunc func(ctx context.Context, req *providers.GenerateRequest) providers.Outcome

	// Reply is returned by the default behavior
	Reply string

	// Latency delays the default behavior; ctx cancellation is ignored when Hang is set
	Latency time.Duration

	// Hang makes the default behavior block until Release is called
	Hang bool

	id       models.ProviderID
	calls    atomic.Int64
	mu       sync.Mutex
	requests []providers.GenerateRequest
	release  chan struct{}
	once     sync.Once
}

// NewFakeProvider creates a fake that answers with reply
func NewFakeProvider(id models.ProviderID, reply string) *FakeProvider {
	return &FakeProvider{
		id:      id,
		Reply:   reply,
		release: make(chan struct{}),
	}
}

// NewFailingProvider creates a fake that always fails with kind
func NewFailingProvider(id models.ProviderID, kind providers.ErrorKind, detail string) *FakeProvider {
	f := NewFakeProvider(id, "")
	f.GenerateFunc = func(context.Context, *providers.GenerateRequest) providers.Outcome {
		return providers.Fail(kind, detail)
	}
	return f
}

// NewHangingProvider creates a fake that never answers until Release
func NewHangingProvider(id models.ProviderID) *FakeProvider {
	f := NewFakeProvider(id, "")
	f.Hang = true
	return f
}

// ID returns the fake's provider id
func (f *FakeProvider) ID() models.ProviderID {
	return f.id
}

// Generate records the request and answers per configuration.
// Like a real adapter, an unconfigured credential fails without a remote call.
func (f *FakeProvider) Generate(ctx context.Context, req *providers.GenerateRequest) providers.Outcome {
	if !req.Credential.Configured() {
		return providers.Fail(providers.ErrorKindUnconfigured, "no valid credential")
	}

	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	f.mu.Unlock()

	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, req)
	}

	if f.Hang {
		<-f.release
		return providers.Success(f.Reply, providers.Usage{})
	}

	if f.Latency > 0 {
		select {
		case <-time.After(f.Latency):
		case <-ctx.Done():
			return providers.FailureFromError(ctx.Err())
		}
	}

	return providers.Success(f.Reply, providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
}

// Calls returns how many remote calls were attempted
func (f *FakeProvider) Calls() int {
	return int(f.calls.Load())
}

// Requests returns a copy of the recorded requests
func (f *FakeProvider) Requests() []providers.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]providers.GenerateRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Release unblocks every hanging call
func (f *FakeProvider) Release() {
	f.once.Do(func() { close(f.release) })
}
