package metrics

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Per-field drift ranges. Deltas are drawn uniformly from [min, max];
// liquidity and anomaly drift asymmetrically.
const (
	volatilityDeltaMin = -0.05
	volatilityDeltaMax = 0.05
	liquidityDeltaMin  = -30000
	liquidityDeltaMax  = 20000
	latencyDeltaMin    = -20
	latencyDeltaMax    = 20
	sentimentDeltaMin  = -0.1
	sentimentDeltaMax  = 0.1
	anomalyDeltaMin    = -0.1
	anomalyDeltaMax    = 0.2
)

// Sampler produces the next metric snapshot from the previous one. A real
// sensor feed can be substituted for the simulated drift without touching
// evaluation.
type Sampler interface {
	Next(prev Snapshot) Snapshot
}

// RandomSamplerOptions parameterise the simulated drift source.
type RandomSamplerOptions struct {
	Seed int64
	Now  func() time.Time
}

// RandomSampler drifts each field by a bounded uniform random delta and
// clamps the result into the field's documented range.
type RandomSampler struct {
	rng *rand.Rand
	now func() time.Time
}

// NewRandomSampler constructs the simulated drift sampler. The same seed
// reproduces the same drift sequence.
func NewRandomSampler(opts RandomSamplerOptions) *RandomSampler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &RandomSampler{
		rng: rand.New(rand.NewSource(opts.Seed)),
		now: now,
	}
}

// Next returns a new snapshot; the input is never mutated. CapturedAt is
// non-decreasing even when the clock steps backwards.
func (r *RandomSampler) Next(prev Snapshot) Snapshot {
	capturedAt := r.now().UTC()
	if !prev.CapturedAt.IsZero() && capturedAt.Before(prev.CapturedAt) {
		capturedAt = prev.CapturedAt
	}

	return Snapshot{
		AssetVolatility: clamp(prev.AssetVolatility.Add(r.delta(volatilityDeltaMin, volatilityDeltaMax)), decimal.Zero, MaxVolatility),
		MarketLiquidity: clampFloor(prev.MarketLiquidity.Add(r.delta(liquidityDeltaMin, liquidityDeltaMax)), decimal.Zero),
		SystemLatency:   clamp(prev.SystemLatency.Add(r.delta(latencyDeltaMin, latencyDeltaMax)), decimal.Zero, MaxLatency),
		PublicSentiment: clamp(prev.PublicSentiment.Add(r.delta(sentimentDeltaMin, sentimentDeltaMax)), decimal.Zero, MaxSentiment),
		AnomalyScore:    clamp(prev.AnomalyScore.Add(r.delta(anomalyDeltaMin, anomalyDeltaMax)), decimal.Zero, MaxAnomaly),
		CapturedAt:      capturedAt,
	}
}

func (r *RandomSampler) delta(min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(min + r.rng.Float64()*(max-min))
}

var _ Sampler = (*RandomSampler)(nil)
