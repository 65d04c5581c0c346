package evaluation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"odas-monitor/internal/metrics"
)

// ErrMalformedSnapshot indicates the evaluator was handed a snapshot that is
// missing its capture time or carries a negative reading.
var ErrMalformedSnapshot = errors.New("evaluation: malformed snapshot")

// Evaluate maps one snapshot to the ordered sequence of interventions whose
// thresholds it violates. Evaluation order is fixed: Financial-volatility,
// Financial-liquidity, Infrastructure-latency, Persona-sentiment,
// Sensor-anomaly. The function is pure; the same snapshot always yields a
// structurally identical sequence.
func Evaluate(s metrics.Snapshot, t ThresholdTable) ([]Intervention, error) {
	if err := validate(s); err != nil {
		return nil, err
	}

	var out []Intervention

	if s.AssetVolatility.GreaterThan(t.VolatilityMax) {
		out = append(out, Intervention{
			Path:        PathFinancial,
			Severity:    SeverityCritical,
			Description: fmt.Sprintf("Asset volatility at %s exceeds stability ceiling", formatPercent(s.AssetVolatility)),
		})
	}
	if s.MarketLiquidity.LessThan(t.LiquidityMin) {
		out = append(out, Intervention{
			Path:        PathFinancial,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("Market liquidity at $%s below operating floor", s.MarketLiquidity.StringFixed(0)),
		})
	}
	if s.SystemLatency.GreaterThan(t.LatencyMax) {
		out = append(out, Intervention{
			Path:        PathInfrastructure,
			Severity:    SeverityCritical,
			Description: fmt.Sprintf("System latency at %sms above tolerance", s.SystemLatency.StringFixed(0)),
		})
	}
	if s.PublicSentiment.LessThan(t.SentimentMin) {
		out = append(out, Intervention{
			Path:        PathPersona,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("Public sentiment at %s below confidence floor", formatPercent(s.PublicSentiment)),
		})
	}
	if s.AnomalyScore.GreaterThan(t.AnomalyMax) {
		out = append(out, Intervention{
			Path:        PathSensor,
			Severity:    SeverityCritical,
			Description: fmt.Sprintf("Sensor anomaly score at %s exceeds containment limit", formatPercent(s.AnomalyScore)),
		})
	}

	return out, nil
}

func validate(s metrics.Snapshot) error {
	if s.CapturedAt.IsZero() {
		return fmt.Errorf("%w: capture time missing", ErrMalformedSnapshot)
	}
	for _, v := range []decimal.Decimal{
		s.AssetVolatility,
		s.MarketLiquidity,
		s.SystemLatency,
		s.PublicSentiment,
		s.AnomalyScore,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: negative reading", ErrMalformedSnapshot)
		}
	}
	return nil
}

// formatPercent renders a fractional reading at display precision, e.g. 0.2
// becomes "20.0%".
func formatPercent(v decimal.Decimal) string {
	return v.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
