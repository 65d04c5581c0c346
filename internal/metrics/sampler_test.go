package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestRandomSamplerStaysWithinBounds(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sampler := NewRandomSampler(RandomSamplerOptions{Seed: 7, Now: fixedClock(base)})

	snapshot := NewSnapshot(0.08, 250000, 80, 0.65, 0.20, base)
	for i := 0; i < 500; i++ {
		snapshot = sampler.Next(snapshot)

		if snapshot.AssetVolatility.IsNegative() || snapshot.AssetVolatility.GreaterThan(MaxVolatility) {
			t.Fatalf("step %d: volatility 越界: %s", i, snapshot.AssetVolatility)
		}
		if snapshot.MarketLiquidity.IsNegative() {
			t.Fatalf("step %d: liquidity 为负: %s", i, snapshot.MarketLiquidity)
		}
		if snapshot.SystemLatency.IsNegative() || snapshot.SystemLatency.GreaterThan(MaxLatency) {
			t.Fatalf("step %d: latency 越界: %s", i, snapshot.SystemLatency)
		}
		if snapshot.PublicSentiment.IsNegative() || snapshot.PublicSentiment.GreaterThan(MaxSentiment) {
			t.Fatalf("step %d: sentiment 越界: %s", i, snapshot.PublicSentiment)
		}
		if snapshot.AnomalyScore.IsNegative() || snapshot.AnomalyScore.GreaterThan(MaxAnomaly) {
			t.Fatalf("step %d: anomaly 越界: %s", i, snapshot.AnomalyScore)
		}
	}
}

func TestRandomSamplerDeterministicBySeed(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := NewRandomSampler(RandomSamplerOptions{Seed: 42, Now: fixedClock(base)})
	second := NewRandomSampler(RandomSamplerOptions{Seed: 42, Now: fixedClock(base)})

	a := NewSnapshot(0.08, 250000, 80, 0.65, 0.20, base)
	b := a
	for i := 0; i < 50; i++ {
		a = first.Next(a)
		b = second.Next(b)

		if !a.AssetVolatility.Equal(b.AssetVolatility) ||
			!a.MarketLiquidity.Equal(b.MarketLiquidity) ||
			!a.SystemLatency.Equal(b.SystemLatency) ||
			!a.PublicSentiment.Equal(b.PublicSentiment) ||
			!a.AnomalyScore.Equal(b.AnomalyScore) {
			t.Fatalf("step %d: 相同种子应产生相同漂移:\n%#v\n%#v", i, a, b)
		}
	}
}

func TestRandomSamplerDoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sampler := NewRandomSampler(RandomSamplerOptions{Seed: 1, Now: fixedClock(base)})

	prev := NewSnapshot(0.08, 250000, 80, 0.65, 0.20, base)
	saved := prev
	_ = sampler.Next(prev)

	if !prev.AssetVolatility.Equal(saved.AssetVolatility) || !prev.CapturedAt.Equal(saved.CapturedAt) {
		t.Fatal("Next 不应修改输入快照")
	}
}

func TestRandomSamplerMonotonicCaptureTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(5 * time.Second), base.Add(2 * time.Second), base.Add(10 * time.Second)}
	idx := 0
	clock := func() time.Time {
		at := times[idx]
		if idx < len(times)-1 {
			idx++
		}
		return at
	}

	sampler := NewRandomSampler(RandomSamplerOptions{Seed: 1, Now: clock})
	snapshot := NewSnapshot(0.08, 250000, 80, 0.65, 0.20, base)

	last := snapshot.CapturedAt
	for i := 0; i < len(times); i++ {
		snapshot = sampler.Next(snapshot)
		if snapshot.CapturedAt.Before(last) {
			t.Fatalf("capturedAt 不应回退: %s < %s", snapshot.CapturedAt, last)
		}
		last = snapshot.CapturedAt
	}
}

func TestNewSnapshotClampsInputs(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := NewSnapshot(0.9, -5000, 400, 1.5, -0.2, at)

	if !snapshot.AssetVolatility.Equal(MaxVolatility) {
		t.Fatalf("volatility 应被钳制到 %s, 实际 %s", MaxVolatility, snapshot.AssetVolatility)
	}
	if !snapshot.MarketLiquidity.Equal(decimal.Zero) {
		t.Fatalf("liquidity 应被钳制到 0, 实际 %s", snapshot.MarketLiquidity)
	}
	if !snapshot.SystemLatency.Equal(MaxLatency) {
		t.Fatalf("latency 应被钳制到 %s, 实际 %s", MaxLatency, snapshot.SystemLatency)
	}
	if !snapshot.PublicSentiment.Equal(MaxSentiment) {
		t.Fatalf("sentiment 应被钳制到 1, 实际 %s", snapshot.PublicSentiment)
	}
	if !snapshot.AnomalyScore.Equal(decimal.Zero) {
		t.Fatalf("anomaly 应被钳制到 0, 实际 %s", snapshot.AnomalyScore)
	}
}
