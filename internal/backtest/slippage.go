// Package backtest replays historical bars through the live signal, risk
// and state pipeline, substituting a slippage model for the broker.
package backtest

import (
	"math/rand"
	"sync"

	"github.com/statarb/reversion/internal/model"
)

// SlippageConfig tunes how far simulated fills deviate from bar prices.
type SlippageConfig struct {
	// SpreadBps is the half-spread in basis points applied against the
	// trade direction.
	SpreadBps float64 `yaml:"spread_bps"`
	// VolatilityImpact scales random intra-bar noise by the bar range.
	VolatilityImpact float64 `yaml:"volatility_impact"`
	// Seed makes fill noise reproducible across runs.
	Seed int64 `yaml:"seed"`
}

// DefaultSlippageConfig mirrors typical US large-cap equity frictions.
func DefaultSlippageConfig() SlippageConfig {
	return SlippageConfig{
		SpreadBps:        5,
		VolatilityImpact: 0.1,
		Seed:             1,
	}
}

// SlippageModel produces adverse simulated fill prices from bars. It is the
// sole source of randomness in a backtest so runs are reproducible.
type SlippageModel struct {
	cfg SlippageConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSlippageModel seeds the model from cfg.Seed.
func NewSlippageModel(cfg SlippageConfig) *SlippageModel {
	return &SlippageModel{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// FillPrice simulates a fill for a market order against bar. Buys start
// from the bar high, sells from the low, the worst print a marketable
// order could hit, then volatility noise and volume-scaled impact shift
// the price before it is clamped back into the bar range.
func (s *SlippageModel) FillPrice(bar model.Bar, side model.Side, size int) float64 {
	s.mu.Lock()
	noise := s.rng.NormFloat64()
	s.mu.Unlock()

	barRange := bar.High - bar.Low
	spread := bar.Close * s.cfg.SpreadBps / 10000

	var price float64
	if side == model.SideBuy {
		price = bar.High + spread
	} else {
		price = bar.Low - spread
	}
	price += noise * s.cfg.VolatilityImpact * barRange
	if bar.Volume > 0 && size > 0 {
		price += float64(size) / bar.Volume * barRange
	}
	return clamp(price, bar.Low, bar.High)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
