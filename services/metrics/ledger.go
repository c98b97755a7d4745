package metrics

import (
	"sync"

	"github.com/google/uuid"

	"github.com/upb/llm-compare/models"
)

// ProviderStats holds the per-provider counters of a snapshot
type ProviderStats struct {
	Calls    int            `json:"calls"`
	Cost     float64        `json:"cost"`
	Failures map[string]int `json:"failures,omitempty"`
}

// FeedbackSummary counts the current feedback values
type FeedbackSummary struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// Snapshot is a point-in-time copy of the ledger
type Snapshot struct {
	TotalCalls      int                                 `json:"total_calls"`
	TotalCost       float64                             `json:"total_cost"`
	FeedbackSummary FeedbackSummary                     `json:"feedback_summary"`
	Providers       map[models.ProviderID]ProviderStats `json:"providers"`
}

type feedbackKey struct {
	messageID uuid.UUID
	provider  models.ProviderID
}

// Ledger accumulates process-lifetime counters.
// Only attempted remote calls are recorded; skipped unconfigured slots never are.
type Ledger struct {
	mu         sync.Mutex
	totalCalls int
	totalCost  float64
	providers  map[models.ProviderID]*ProviderStats
	feedback   map[feedbackKey]models.FeedbackValue
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		providers: make(map[models.ProviderID]*ProviderStats),
		feedback:  make(map[feedbackKey]models.FeedbackValue),
	}
}

// RecordCall counts one attempted call
func (l *Ledger) RecordCall(provider models.ProviderID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalCalls++
	l.statsFor(provider).Calls++
}

// RecordCost adds amount to the provider's and the global cost
func (l *Ledger) RecordCost(provider models.ProviderID, amount float64) {
	if amount <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalCost += amount
	l.statsFor(provider).Cost += amount
}

// RecordFailure counts a failed attempted call by error kind
func (l *Ledger) RecordFailure(provider models.ProviderID, kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := l.statsFor(provider)
	if stats.Failures == nil {
		stats.Failures = make(map[string]int)
	}
	stats.Failures[kind]++
}

// RecordFeedback stores the verdict for (messageID, provider); the last write wins
func (l *Ledger) RecordFeedback(messageID uuid.UUID, provider models.ProviderID, value models.FeedbackValue) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.feedback[feedbackKey{messageID: messageID, provider: provider}] = value
}

// Snapshot returns a consistent copy of every counter
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		TotalCalls: l.totalCalls,
		TotalCost:  l.totalCost,
		Providers:  make(map[models.ProviderID]ProviderStats, len(l.providers)),
	}

	for id, stats := range l.providers {
		cp := ProviderStats{Calls: stats.Calls, Cost: stats.Cost}
		if len(stats.Failures) > 0 {
			cp.Failures = make(map[string]int, len(stats.Failures))
			for k, v := range stats.Failures {
				cp.Failures[k] = v
			}
		}
		snap.Providers[id] = cp
	}

	for _, value := range l.feedback {
		switch value {
		case models.FeedbackPositive:
			snap.FeedbackSummary.Positive++
		case models.FeedbackNegative:
			snap.FeedbackSummary.Negative++
		}
	}

	return snap
}

// Reset clears every counter
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalCalls = 0
	l.totalCost = 0
	l.providers = make(map[models.ProviderID]*ProviderStats)
	l.feedback = make(map[feedbackKey]models.FeedbackValue)
}

// statsFor must be called with mu held
func (l *Ledger) statsFor(provider models.ProviderID) *ProviderStats {
	stats, ok := l.providers[provider]
	if !ok {
		stats = &ProviderStats{}
		l.providers[provider] = stats
	}
	return stats
}
