package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Field clamp bounds. Liquidity has no upper bound.
var (
	MaxVolatility = decimal.NewFromFloat(0.5)
	MaxLatency    = decimal.NewFromInt(300)
	MaxSentiment  = decimal.NewFromInt(1)
	MaxAnomaly    = decimal.NewFromInt(1)
)

// Snapshot is one point-in-time reading of all monitored metrics.
type Snapshot struct {
	AssetVolatility decimal.Decimal
	MarketLiquidity decimal.Decimal
	SystemLatency   decimal.Decimal
	PublicSentiment decimal.Decimal
	AnomalyScore    decimal.Decimal
	CapturedAt      time.Time
}

// NewSnapshot builds a snapshot from raw float readings, clamping every field
// into its documented range.
func NewSnapshot(volatility, liquidity, latency, sentiment, anomaly float64, capturedAt time.Time) Snapshot {
	return Snapshot{
		AssetVolatility: clamp(decimal.NewFromFloat(volatility), decimal.Zero, MaxVolatility),
		MarketLiquidity: clampFloor(decimal.NewFromFloat(liquidity), decimal.Zero),
		SystemLatency:   clamp(decimal.NewFromFloat(latency), decimal.Zero, MaxLatency),
		PublicSentiment: clamp(decimal.NewFromFloat(sentiment), decimal.Zero, MaxSentiment),
		AnomalyScore:    clamp(decimal.NewFromFloat(anomaly), decimal.Zero, MaxAnomaly),
		CapturedAt:      capturedAt,
	}
}

func clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

func clampFloor(v, min decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	return v
}
