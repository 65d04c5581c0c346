package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"odas-monitor/internal/evaluation"
	"odas-monitor/internal/metrics"
)

// InterventionRecord is one appended fact in the intervention log. LoggedAt
// is assigned by the database at insert time; any client-side timestamp is
// not trusted.
type InterventionRecord struct {
	ID          uuid.UUID
	Path        evaluation.Path
	Severity    evaluation.Severity
	Description string
	LoggedAt    time.Time
}

// MetricSample is one persisted tick's snapshot of the monitored metrics.
type MetricSample struct {
	CapturedAt      time.Time
	AssetVolatility decimal.Decimal
	MarketLiquidity decimal.Decimal
	SystemLatency   decimal.Decimal
	PublicSentiment decimal.Decimal
	AnomalyScore    decimal.Decimal
	CreatedAt       time.Time
}

// SampleFromSnapshot converts a live snapshot into its persisted form.
func SampleFromSnapshot(s metrics.Snapshot) MetricSample {
	return MetricSample{
		CapturedAt:      s.CapturedAt,
		AssetVolatility: s.AssetVolatility,
		MarketLiquidity: s.MarketLiquidity,
		SystemLatency:   s.SystemLatency,
		PublicSentiment: s.PublicSentiment,
		AnomalyScore:    s.AnomalyScore,
	}
}

// Snapshot converts a persisted sample back to its live form.
func (m MetricSample) Snapshot() metrics.Snapshot {
	return metrics.Snapshot{
		AssetVolatility: m.AssetVolatility,
		MarketLiquidity: m.MarketLiquidity,
		SystemLatency:   m.SystemLatency,
		PublicSentiment: m.PublicSentiment,
		AnomalyScore:    m.AnomalyScore,
		CapturedAt:      m.CapturedAt,
	}
}
