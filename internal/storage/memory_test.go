package storage

import (
	"context"
	"testing"
	"time"

	"odas-monitor/internal/evaluation"
	"odas-monitor/internal/metrics"
)

func TestMemoryStoreAppendAssignsIdentityAndLoggedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return base })

	rec, err := store.AppendIntervention(context.Background(), evaluation.Intervention{
		Path:        evaluation.PathSensor,
		Severity:    evaluation.SeverityCritical,
		Description: "Sensor anomaly score at 91.0% exceeds containment limit",
	})
	if err != nil {
		t.Fatalf("append should succeed: %v", err)
	}
	if rec.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("append should assign a record ID")
	}
	if !rec.LoggedAt.Equal(base) {
		t.Fatalf("loggedAt should come from the store clock, got %s", rec.LoggedAt)
	}
}

func TestMemoryStoreLoggedAtNeverRegresses(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC),
		time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC),
	}
	idx := 0
	store := NewMemoryStoreWithClock(func() time.Time {
		at := times[idx]
		if idx < len(times)-1 {
			idx++
		}
		return at
	})

	first, _ := store.AppendIntervention(context.Background(), evaluation.Intervention{Path: evaluation.PathPersona, Severity: evaluation.SeverityWarning})
	second, _ := store.AppendIntervention(context.Background(), evaluation.Intervention{Path: evaluation.PathPersona, Severity: evaluation.SeverityWarning})

	if second.LoggedAt.Before(first.LoggedAt) {
		t.Fatalf("loggedAt regressed: %s < %s", second.LoggedAt, first.LoggedAt)
	}
}

func TestMemoryStoreCountsAndRecency(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i, severity := range []evaluation.Severity{
		evaluation.SeverityCritical,
		evaluation.SeverityWarning,
		evaluation.SeverityCritical,
	} {
		if _, err := store.AppendIntervention(ctx, evaluation.Intervention{
			Path:        evaluation.PathFinancial,
			Severity:    severity,
			Description: string(rune('a' + i)),
		}); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	total, err := store.CountInterventions(ctx)
	if err != nil || total != 3 {
		t.Fatalf("expected 3 records, got %d (err=%v)", total, err)
	}

	criticals, err := store.CountBySeverity(ctx, evaluation.SeverityCritical)
	if err != nil || criticals != 2 {
		t.Fatalf("expected 2 critical records, got %d (err=%v)", criticals, err)
	}

	recent, err := store.ListRecentInterventions(ctx, 2)
	if err != nil {
		t.Fatalf("list recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent records, got %d", len(recent))
	}
	if recent[0].Description != "c" || recent[1].Description != "b" {
		t.Fatalf("recent records out of order: %q then %q", recent[0].Description, recent[1].Description)
	}
}

func TestMemoryStoreDeleteBefore(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time {
		at = at.Add(time.Minute)
		return at
	})

	for i := 0; i < 3; i++ {
		if _, err := store.AppendIntervention(ctx, evaluation.Intervention{Path: evaluation.PathSensor, Severity: evaluation.SeverityCritical}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	cutoff := time.Date(2026, 3, 1, 12, 2, 30, 0, time.UTC)
	if err := store.DeleteInterventionsBefore(ctx, cutoff); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	total, _ := store.CountInterventions(ctx)
	if total != 1 {
		t.Fatalf("expected 1 surviving record, got %d", total)
	}
}

func TestMemoryStoreSampleRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := metrics.NewSnapshot(0.12, 180000, 95, 0.55, 0.40, at)

	if err := store.UpsertMetricSample(ctx, SampleFromSnapshot(snapshot)); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// second upsert at the same capture time replaces, not duplicates
	updated := metrics.NewSnapshot(0.14, 180000, 95, 0.55, 0.40, at)
	if err := store.UpsertMetricSample(ctx, SampleFromSnapshot(updated)); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	count, _ := store.CountSamples(ctx)
	if count != 1 {
		t.Fatalf("expected 1 sample, got %d", count)
	}

	recent, err := store.ListRecentSamples(ctx, 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("list recent samples failed: %v (%d)", err, len(recent))
	}
	if !recent[0].AssetVolatility.Equal(updated.AssetVolatility) {
		t.Fatalf("sample not replaced: %s", recent[0].AssetVolatility)
	}

	window, err := store.ListSamplesBetween(ctx, at, at.Add(time.Second))
	if err != nil || len(window) != 1 {
		t.Fatalf("window lookup failed: %v (%d)", err, len(window))
	}
	if !window[0].Snapshot().CapturedAt.Equal(at) {
		t.Fatalf("round-tripped capture time mismatch: %s", window[0].Snapshot().CapturedAt)
	}
}
