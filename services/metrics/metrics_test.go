package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/providers"
)

func TestLedger_RecordCallsAndCost(t *testing.T) {
	ledger := NewLedger()

	ledger.RecordCall(models.ProviderOpenAI)
	ledger.RecordCall(models.ProviderOpenAI)
	ledger.RecordCall(models.ProviderGemini)
	ledger.RecordCost(models.ProviderOpenAI, 0.25)
	ledger.RecordCost(models.ProviderGemini, 0.5)
	ledger.RecordCost(models.ProviderGemini, 0)
	ledger.RecordFailure(models.ProviderGemini, "transient")

	snap := ledger.Snapshot()

	assert.Equal(t, 3, snap.TotalCalls)
	assert.InDelta(t, 0.75, snap.TotalCost, 1e-9)
	assert.Equal(t, 2, snap.Providers[models.ProviderOpenAI].Calls)
	assert.InDelta(t, 0.5, snap.Providers[models.ProviderGemini].Cost, 1e-9)
	assert.Equal(t, map[string]int{"transient": 1}, snap.Providers[models.ProviderGemini].Failures)
	assert.Len(t, snap.Providers, 2)
}

func TestLedger_FeedbackLastWriteWins(t *testing.T) {
	ledger := NewLedger()
	msg := uuid.New()

	ledger.RecordFeedback(msg, models.ProviderOpenAI, models.FeedbackPositive)
	ledger.RecordFeedback(msg, models.ProviderOpenAI, models.FeedbackPositive)
	assert.Equal(t, FeedbackSummary{Positive: 1}, ledger.Snapshot().FeedbackSummary)

	ledger.RecordFeedback(msg, models.ProviderOpenAI, models.FeedbackNegative)
	assert.Equal(t, FeedbackSummary{Negative: 1}, ledger.Snapshot().FeedbackSummary)

	ledger.RecordFeedback(msg, models.ProviderGemini, models.FeedbackPositive)
	ledger.RecordFeedback(uuid.New(), models.ProviderOpenAI, models.FeedbackPositive)
	assert.Equal(t, FeedbackSummary{Positive: 2, Negative: 1}, ledger.Snapshot().FeedbackSummary)
}

func TestLedger_SnapshotIsACopy(t *testing.T) {
	ledger := NewLedger()
	ledger.RecordFailure(models.ProviderGrok, "unknown")

	snap := ledger.Snapshot()
	snap.Providers[models.ProviderGrok].Failures["unknown"] = 99

	assert.Equal(t, 1, ledger.Snapshot().Providers[models.ProviderGrok].Failures["unknown"])
}

func TestLedger_Reset(t *testing.T) {
	ledger := NewLedger()
	ledger.RecordCall(models.ProviderOpenAI)
	ledger.RecordCost(models.ProviderOpenAI, 1)
	ledger.RecordFeedback(uuid.New(), models.ProviderOpenAI, models.FeedbackPositive)

	ledger.Reset()

	snap := ledger.Snapshot()
	assert.Zero(t, snap.TotalCalls)
	assert.Zero(t, snap.TotalCost)
	assert.Empty(t, snap.Providers)
	assert.Equal(t, FeedbackSummary{}, snap.FeedbackSummary)
}

func TestLedger_Concurrent(t *testing.T) {
	ledger := NewLedger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				ledger.RecordCall(models.ProviderOpenAI)
				ledger.RecordCost(models.ProviderOpenAI, 0.01)
				_ = ledger.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := ledger.Snapshot()
	assert.Equal(t, 1000, snap.TotalCalls)
	assert.InDelta(t, 10.0, snap.TotalCost, 1e-6)
}

func TestPriceTable_Cost(t *testing.T) {
	table := DefaultPriceTable()

	cost := table.Cost(models.ProviderOpenAI, "gpt-3.5-turbo", providers.Usage{TotalTokens: 500})
	assert.InDelta(t, 0.001, cost, 1e-12)

	assert.Zero(t, table.Cost(models.ProviderOpenAI, "unknown-model", providers.Usage{TotalTokens: 500}))
	assert.Zero(t, table.Cost("mystery", "m", providers.Usage{TotalTokens: 500}))
}

func TestLoadPriceTable(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		table, err := LoadPriceTable("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPriceTable(), table)
	})

	t.Run("file overlays defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pricing.toml")
		content := `
[providers.openai."gpt-3.5-turbo"]
per_request = 0.01
per_1k_tokens = 0.0

[providers.gemini."*"]
per_request = 0.002
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		table, err := LoadPriceTable(path)
		require.NoError(t, err)

		assert.InDelta(t, 0.01, table.Cost(models.ProviderOpenAI, "gpt-3.5-turbo", providers.Usage{TotalTokens: 1000}), 1e-12)
		assert.InDelta(t, 0.0006, table.Cost(models.ProviderOpenAI, "gpt-4o-mini", providers.Usage{TotalTokens: 1000}), 1e-12)
		assert.InDelta(t, 0.002, table.Cost(models.ProviderGemini, "gemini-1.5-flash", providers.Usage{}), 1e-12)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPriceTable(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		require.NoError(t, os.WriteFile(path, []byte("[providers\nbroken"), 0o600))

		_, err := LoadPriceTable(path)
		assert.ErrorContains(t, err, "failed to parse pricing file")
	})
}
