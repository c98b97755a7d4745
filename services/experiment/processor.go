package experiment

import (
	"math/rand"
	"strings"
	"sync"
)

// Processor transforms a successful provider text before it is shown
type Processor interface {
	Apply(text string) string
}

// RandomSource yields floats in [0, 1)
type RandomSource interface {
	Float64() float64
}

// Identity returns text unchanged
type Identity struct{}

// Apply implements Processor
func (Identity) Apply(text string) string {
	return text
}

// Variant names the arm of the case experiment that was served
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

// CaseExperiment serves variant B (upper-cased text) with the configured
// probability and variant A (unchanged text) otherwise.
type CaseExperiment struct {
	probability float64

	mu     sync.Mutex
	source RandomSource
	served map[Variant]int
}

// NewCaseExperiment creates an experiment; probability is clamped to [0, 1]
func NewCaseExperiment(probability float64, source RandomSource) *CaseExperiment {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	return &CaseExperiment{
		probability: probability,
		source:      source,
		served:      make(map[Variant]int),
	}
}

// NewSeededCaseExperiment creates an experiment over a deterministic source
func NewSeededCaseExperiment(probability float64, seed int64) *CaseExperiment {
	return NewCaseExperiment(probability, rand.New(rand.NewSource(seed)))
}

// Apply implements Processor
func (e *CaseExperiment) Apply(text string) string {
	if e.pick() == VariantB {
		return strings.ToUpper(text)
	}
	return text
}

// Served returns how many times each variant has been served
func (e *CaseExperiment) Served() map[Variant]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[Variant]int, len(e.served))
	for v, n := range e.served {
		out[v] = n
	}
	return out
}

// pick draws a variant; rand.Rand is not safe for concurrent use
func (e *CaseExperiment) pick() Variant {
	e.mu.Lock()
	defer e.mu.Unlock()

	variant := VariantA
	if e.source.Float64() < e.probability {
		variant = VariantB
	}
	e.served[variant]++
	return variant
}
