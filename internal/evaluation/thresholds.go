package evaluation

import "github.com/shopspring/decimal"

// ThresholdTable holds one upper-or-lower bound per monitored metric.
// Upper bounds fire on value > bound, lower bounds on value < bound; a value
// exactly at the bound never fires.
type ThresholdTable struct {
	VolatilityMax decimal.Decimal
	LiquidityMin  decimal.Decimal
	LatencyMax    decimal.Decimal
	SentimentMin  decimal.Decimal
	AnomalyMax    decimal.Decimal
}

// NewThresholdTable builds a table from raw float bounds.
func NewThresholdTable(volatilityMax, liquidityMin, latencyMax, sentimentMin, anomalyMax float64) ThresholdTable {
	return ThresholdTable{
		VolatilityMax: decimal.NewFromFloat(volatilityMax),
		LiquidityMin:  decimal.NewFromFloat(liquidityMin),
		LatencyMax:    decimal.NewFromFloat(latencyMax),
		SentimentMin:  decimal.NewFromFloat(sentimentMin),
		AnomalyMax:    decimal.NewFromFloat(anomalyMax),
	}
}

// DefaultThresholds returns the control-panel defaults.
func DefaultThresholds() ThresholdTable {
	return NewThresholdTable(0.15, 100000, 150, 0.40, 0.85)
}
