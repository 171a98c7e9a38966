package cost

import (
	"sync"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Rates holds Anthropic pricing configuration keyed by model ID.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for classification API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call. Batch API calls get the
// configured discount on every component. Unknown models cost 0.
func (c *Calculator) Claude(model string, isBatch bool, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	batchMul := 1.0
	if isBatch {
		batchMul = rate.BatchDiscount
	}

	inCost := (float64(input) / 1e6) * rate.Input * batchMul
	outCost := (float64(output) / 1e6) * rate.Output * batchMul
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul * batchMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul * batchMul

	return inCost + outCost + cwCost + crCost
}

// Tracker accumulates token usage and cost across the classifications of a
// monitor run, split by direct and batch calls.
type Tracker struct {
	calc *Calculator

	mu     sync.Mutex
	direct model.TokenUsage
	batch  model.TokenUsage
}

// NewTracker creates a Tracker backed by the given Calculator.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// Record adds one call's token counts and prices it.
func (t *Tracker) Record(modelID string, isBatch bool, u model.TokenUsage) {
	u.Cost = t.calc.Claude(modelID, isBatch,
		u.InputTokens, u.OutputTokens, u.CacheCreationTokens, u.CacheReadTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	if isBatch {
		t.batch.Add(u)
	} else {
		t.direct.Add(u)
	}
}

// Totals returns the accumulated direct, batch and combined usage.
func (t *Tracker) Totals() (direct, batch, total model.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	total = t.direct
	total.Add(t.batch)
	return t.direct, t.batch, total
}

// DefaultRates returns the default Anthropic pricing.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00,
				BatchDiscount: 0.5, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
	}
}
