package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"odas-monitor/internal/evaluation"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertInterventionSQL = `INSERT INTO interventions (
        id,
        path,
        severity,
        description
    ) VALUES (
        $1,$2,$3,$4
    )
    RETURNING id, path, severity, description, logged_at;`

	listRecentInterventionsSQL = `SELECT
        id,
        path,
        severity,
        description,
        logged_at
    FROM interventions
    ORDER BY logged_at DESC, id DESC
    LIMIT $1;`

	countInterventionsSQL = `SELECT COUNT(*) FROM interventions;`

	countBySeveritySQL = `SELECT COUNT(*) FROM interventions WHERE severity = $1;`

	deleteInterventionsBeforeSQL = `DELETE FROM interventions WHERE logged_at < $1;`

	upsertMetricSampleSQL = `INSERT INTO metric_samples (
        captured_at,
        asset_volatility,
        market_liquidity,
        system_latency,
        public_sentiment,
        anomaly_score
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (captured_at) DO UPDATE
    SET
        asset_volatility = EXCLUDED.asset_volatility,
        market_liquidity = EXCLUDED.market_liquidity,
        system_latency   = EXCLUDED.system_latency,
        public_sentiment = EXCLUDED.public_sentiment,
        anomaly_score    = EXCLUDED.anomaly_score;`

	listSamplesBetweenSQL = `SELECT
        captured_at,
        asset_volatility,
        market_liquidity,
        system_latency,
        public_sentiment,
        anomaly_score,
        created_at
    FROM metric_samples
    WHERE captured_at >= $1
      AND captured_at < $2
    ORDER BY captured_at;`

	listRecentSamplesSQL = `SELECT
        captured_at,
        asset_volatility,
        market_liquidity,
        system_latency,
        public_sentiment,
        anomaly_score,
        created_at
    FROM metric_samples
    ORDER BY captured_at DESC
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM metric_samples;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// InterventionStore is the append-only intervention log plus its read path.
// Appends are at-least-once per record; the store never mutates or deletes a
// record on behalf of the evaluation loop.
type InterventionStore interface {
	AppendIntervention(ctx context.Context, iv evaluation.Intervention) (InterventionRecord, error)
	ListRecentInterventions(ctx context.Context, limit int) ([]InterventionRecord, error)
	CountInterventions(ctx context.Context) (int64, error)
	CountBySeverity(ctx context.Context, severity evaluation.Severity) (int64, error)
	DeleteInterventionsBefore(ctx context.Context, olderThan time.Time) error
}

// MetricSampleStore persists the per-tick metric history.
type MetricSampleStore interface {
	UpsertMetricSample(ctx context.Context, sample MetricSample) error
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]MetricSample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]MetricSample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// ReadinessProber reports whether the backend is reachable.
type ReadinessProber interface {
	Ping(ctx context.Context) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the intervention log and metric history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies backend reachability; used by the readiness gate.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock is released with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// AppendIntervention appends one record to the log. The database assigns the
// authoritative logged_at timestamp.
func (s *Store) AppendIntervention(ctx context.Context, iv evaluation.Intervention) (InterventionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return InterventionRecord{}, err
	}

	row := pool.QueryRow(ctx, insertInterventionSQL,
		uuid.New(),
		string(iv.Path),
		string(iv.Severity),
		iv.Description,
	)

	rec, scanErr := scanIntervention(row)
	if scanErr != nil {
		return InterventionRecord{}, fmt.Errorf("append intervention: %w", scanErr)
	}
	return rec, nil
}

// ListRecentInterventions lists the most recent records, newest first.
func (s *Store) ListRecentInterventions(ctx context.Context, limit int) ([]InterventionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentInterventionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent interventions: %w", queryErr)
	}
	defer rows.Close()

	records := make([]InterventionRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanIntervention(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// CountInterventions counts all records ever logged.
func (s *Store) CountInterventions(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countInterventionsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count interventions: %w", scanErr)
	}
	return count, nil
}

// CountBySeverity counts records of one severity.
func (s *Store) CountBySeverity(ctx context.Context, severity evaluation.Severity) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countBySeveritySQL, string(severity)).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count interventions by severity: %w", scanErr)
	}
	return count, nil
}

// DeleteInterventionsBefore trims historical records for retention.
func (s *Store) DeleteInterventionsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteInterventionsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete interventions before: %w", execErr)
	}
	return nil
}

// UpsertMetricSample persists or updates one tick's snapshot.
func (s *Store) UpsertMetricSample(ctx context.Context, sample MetricSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertMetricSampleSQL,
		sample.CapturedAt,
		sample.AssetVolatility.String(),
		sample.MarketLiquidity.String(),
		sample.SystemLatency.String(),
		sample.PublicSentiment.String(),
		sample.AnomalyScore.String(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert metric sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]MetricSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]MetricSample, 0)
	for rows.Next() {
		sample, scanErr := scanMetricSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples ordered by descending capture time.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]MetricSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]MetricSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanMetricSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

func scanIntervention(row pgx.Row) (InterventionRecord, error) {
	var (
		rec      InterventionRecord
		path     string
		severity string
	)
	if err := row.Scan(
		&rec.ID,
		&path,
		&severity,
		&rec.Description,
		&rec.LoggedAt,
	); err != nil {
		return InterventionRecord{}, err
	}
	rec.Path = evaluation.Path(path)
	rec.Severity = evaluation.Severity(severity)
	return rec, nil
}

func scanMetricSample(rows pgx.Rows) (MetricSample, error) {
	var (
		capturedAt time.Time
		volatility string
		liquidity  string
		latency    string
		sentiment  string
		anomaly    string
		createdAt  time.Time
	)

	if err := rows.Scan(
		&capturedAt,
		&volatility,
		&liquidity,
		&latency,
		&sentiment,
		&anomaly,
		&createdAt,
	); err != nil {
		return MetricSample{}, err
	}

	sample := MetricSample{CapturedAt: capturedAt, CreatedAt: createdAt}

	var err error
	if sample.AssetVolatility, err = decimal.NewFromString(volatility); err != nil {
		return MetricSample{}, fmt.Errorf("parse asset volatility: %w", err)
	}
	if sample.MarketLiquidity, err = decimal.NewFromString(liquidity); err != nil {
		return MetricSample{}, fmt.Errorf("parse market liquidity: %w", err)
	}
	if sample.SystemLatency, err = decimal.NewFromString(latency); err != nil {
		return MetricSample{}, fmt.Errorf("parse system latency: %w", err)
	}
	if sample.PublicSentiment, err = decimal.NewFromString(sentiment); err != nil {
		return MetricSample{}, fmt.Errorf("parse public sentiment: %w", err)
	}
	if sample.AnomalyScore, err = decimal.NewFromString(anomaly); err != nil {
		return MetricSample{}, fmt.Errorf("parse anomaly score: %w", err)
	}

	return sample, nil
}
