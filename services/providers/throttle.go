package providers

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/upb/llm-compare/models"
)

// Throttled limits how fast a provider is called across all users.
// Unconfigured calls pass straight through since they never reach the network.
type Throttled struct {
	next    Provider
	limiter *rate.Limiter
}

// NewThrottled wraps next with a token bucket of rps requests per second and the given burst
func NewThrottled(next Provider, rps float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// ID returns the wrapped provider's id
func (t *Throttled) ID() models.ProviderID {
	return t.next.ID()
}

// Generate waits for a token, then delegates
func (t *Throttled) Generate(ctx context.Context, req *GenerateRequest) Outcome {
	if !req.Credential.Configured() {
		return t.next.Generate(ctx, req)
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return Failf(ErrorKindTransient, "throttled: %v", err)
	}
	return t.next.Generate(ctx, req)
}
