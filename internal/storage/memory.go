package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"odas-monitor/internal/evaluation"
)

// MemoryStore is an in-process implementation of the store interfaces. It
// backs tests and offline simulation runs, and serves as the fallback log
// when no database is configured.
type MemoryStore struct {
	mu            sync.Mutex
	now           func() time.Time
	interventions []InterventionRecord
	samples       []MetricSample
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock injects the clock used to assign logged-at values.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{now: now}
}

// Ping always succeeds; the in-memory backend is trivially ready.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// AppendIntervention appends one record, assigning its ID and logged-at time.
func (m *MemoryStore) AppendIntervention(ctx context.Context, iv evaluation.Intervention) (InterventionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loggedAt := m.now().UTC()
	if n := len(m.interventions); n > 0 && loggedAt.Before(m.interventions[n-1].LoggedAt) {
		loggedAt = m.interventions[n-1].LoggedAt
	}

	rec := InterventionRecord{
		ID:          uuid.New(),
		Path:        iv.Path,
		Severity:    iv.Severity,
		Description: iv.Description,
		LoggedAt:    loggedAt,
	}
	m.interventions = append(m.interventions, rec)
	return rec, nil
}

// ListRecentInterventions returns the most recent records, newest first.
func (m *MemoryStore) ListRecentInterventions(ctx context.Context, limit int) ([]InterventionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.interventions)
	if limit > n {
		limit = n
	}
	out := make([]InterventionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.interventions[i])
	}
	return out, nil
}

// CountInterventions counts all appended records.
func (m *MemoryStore) CountInterventions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.interventions)), nil
}

// CountBySeverity counts appended records of one severity.
func (m *MemoryStore) CountBySeverity(ctx context.Context, severity evaluation.Severity) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, rec := range m.interventions {
		if rec.Severity == severity {
			count++
		}
	}
	return count, nil
}

// DeleteInterventionsBefore trims records logged before the cutoff.
func (m *MemoryStore) DeleteInterventionsBefore(ctx context.Context, olderThan time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.interventions[:0]
	for _, rec := range m.interventions {
		if !rec.LoggedAt.Before(olderThan) {
			kept = append(kept, rec)
		}
	}
	m.interventions = kept
	return nil
}

// UpsertMetricSample stores or replaces a sample keyed by capture time.
func (m *MemoryStore) UpsertMetricSample(ctx context.Context, sample MetricSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = m.now().UTC()
	}
	for i, existing := range m.samples {
		if existing.CapturedAt.Equal(sample.CapturedAt) {
			m.samples[i] = sample
			return nil
		}
	}
	m.samples = append(m.samples, sample)
	return nil
}

// ListSamplesBetween lists samples within [from, to) in capture order.
func (m *MemoryStore) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]MetricSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MetricSample, 0)
	for _, sample := range m.samples {
		if !sample.CapturedAt.Before(from) && sample.CapturedAt.Before(to) {
			out = append(out, sample)
		}
	}
	return out, nil
}

// ListRecentSamples lists the most recent samples, newest first.
func (m *MemoryStore) ListRecentSamples(ctx context.Context, limit int) ([]MetricSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.samples)
	if limit > n {
		limit = n
	}
	out := make([]MetricSample, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.samples[i])
	}
	return out, nil
}

// CountSamples counts stored samples.
func (m *MemoryStore) CountSamples(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.samples)), nil
}

var (
	_ InterventionStore = (*MemoryStore)(nil)
	_ MetricSampleStore = (*MemoryStore)(nil)
	_ ReadinessProber   = (*MemoryStore)(nil)
)
