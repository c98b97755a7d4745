package metrics

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/providers"
)

// AnyModel is the model key used as a provider-wide fallback price
const AnyModel = "*"

// Price is the cost model of one provider model
type Price struct {
	PerRequest  float64 `toml:"per_request"`
	Per1KTokens float64 `toml:"per_1k_tokens"`
}

// PriceTable maps provider id and model to a Price
type PriceTable struct {
	Providers map[string]map[string]Price `toml:"providers"`
}

// DefaultPriceTable returns the built-in prices
func DefaultPriceTable() *PriceTable {
	return &PriceTable{
		Providers: map[string]map[string]Price{
			string(models.ProviderOpenAI): {
				"gpt-3.5-turbo": {Per1KTokens: 0.002},
				"gpt-4o-mini":   {Per1KTokens: 0.0006},
				"gpt-4o":        {Per1KTokens: 0.01},
			},
			string(models.ProviderGemini): {
				"gemini-pro": {Per1KTokens: 0.0005},
			},
			string(models.ProviderGrok): {
				"grok-2": {Per1KTokens: 0.01},
			},
			string(models.ProviderAnthropic): {
				"claude-3-5-haiku-latest": {Per1KTokens: 0.004},
			},
		},
	}
}

// LoadPriceTable overlays the TOML file at path on top of the defaults.
// An empty path returns the defaults.
func LoadPriceTable(path string) (*PriceTable, error) {
	table := DefaultPriceTable()
	if path == "" {
		return table, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat pricing file: %w", err)
	}

	var overrides PriceTable
	if _, err := toml.DecodeFile(path, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file: %w", err)
	}

	table.merge(&overrides)
	return table, nil
}

// Cost prices one call; unknown provider/model pairs fall back to the
// provider's "*" entry and then to zero
func (t *PriceTable) Cost(provider models.ProviderID, model string, usage providers.Usage) float64 {
	price, ok := t.lookup(provider, model)
	if !ok {
		return 0
	}
	return price.PerRequest + float64(usage.TotalTokens)/1000*price.Per1KTokens
}

func (t *PriceTable) lookup(provider models.ProviderID, model string) (Price, bool) {
	byModel, ok := t.Providers[string(provider)]
	if !ok {
		return Price{}, false
	}
	if price, ok := byModel[model]; ok {
		return price, true
	}
	price, ok := byModel[AnyModel]
	return price, ok
}

func (t *PriceTable) merge(other *PriceTable) {
	if t.Providers == nil {
		t.Providers = make(map[string]map[string]Price)
	}
	for provider, byModel := range other.Providers {
		if t.Providers[provider] == nil {
			t.Providers[provider] = make(map[string]Price)
		}
		for model, price := range byModel {
			t.Providers[provider][model] = price
		}
	}
}
