package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"odas-monitor/internal/alerting"
	"odas-monitor/internal/config"
	"odas-monitor/internal/evaluation"
	"odas-monitor/internal/logging"
	"odas-monitor/internal/metrics"
	"odas-monitor/internal/scheduler"
	"odas-monitor/internal/storage"
)

// State tracks the loop lifecycle. Stopped is terminal for a session.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StatusAwaitingBackend is surfaced while the readiness gate has not fired.
const StatusAwaitingBackend = "Awaiting backend readiness"

// Loop drives periodic evaluation: sample, evaluate, append interventions,
// derive statuses. It stays Idle until the storage backend is reachable and
// keeps running through every per-tick failure.
type Loop struct {
	scheduler  *scheduler.Scheduler
	sampler    metrics.Sampler
	thresholds evaluation.ThresholdTable
	log        storage.InterventionStore
	samples    storage.MetricSampleStore
	prober     storage.ReadinessProber
	notifier   alerting.Notifier
	logger     zerolog.Logger

	locker  storage.AdvisoryLocker
	lockKey int64

	readinessPoll time.Duration
	readinessWarn time.Duration
	channels      []string
	alertsOn      bool
	criticalOnly  bool

	state    atomic.Int32
	inFlight atomic.Bool

	mu         sync.Mutex
	current    metrics.Snapshot
	tickStatus string
	health     string
}

// Options bundle the loop's collaborators.
type Options struct {
	Scheduler     *scheduler.Scheduler
	Sampler       metrics.Sampler
	Thresholds    evaluation.ThresholdTable
	Interventions storage.InterventionStore
	Samples       storage.MetricSampleStore
	Prober        storage.ReadinessProber
	Notifier      alerting.Notifier
	Initial       metrics.Snapshot
}

// New constructs the evaluation loop.
func New(cfg *config.Config, opts Options, logger zerolog.Logger) *Loop {
	l := &Loop{
		scheduler:     opts.Scheduler,
		sampler:       opts.Sampler,
		thresholds:    opts.Thresholds,
		log:           opts.Interventions,
		samples:       opts.Samples,
		prober:        opts.Prober,
		notifier:      opts.Notifier,
		logger:        logging.Component(logger, "loop"),
		lockKey:       cfg.Scheduler.AdvisoryLockKey,
		readinessPoll: cfg.Readiness.PollInterval,
		readinessWarn: cfg.Readiness.WarnAfter,
		channels:      cfg.Alerting.Channels,
		alertsOn:      cfg.Alerting.Enabled,
		criticalOnly:  cfg.Alerting.CriticalOnly,
		current:       opts.Initial,
		tickStatus:    evaluation.StatusNormal,
		health:        evaluation.HealthOptimal,
	}
	if locker, ok := opts.Interventions.(storage.AdvisoryLocker); ok {
		l.locker = locker
	}
	return l
}

// Run blocks until ctx is cancelled: waits for backend readiness, then drives
// scheduled ticks. On return the loop is Stopped; in-flight writes of the
// last tick are allowed to finish before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if l.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}

	if err := l.awaitReadiness(ctx); err != nil {
		l.state.Store(int32(StateStopped))
		return err
	}

	l.state.Store(int32(StateRunning))
	l.logger.Info().Msg("backend ready; evaluation loop running")

	err := l.scheduler.Run(ctx, l.ProcessTick)
	l.state.Store(int32(StateStopped))
	return err
}

// awaitReadiness polls the backend until it answers. The loop stays Idle for
// as long as it takes; after readinessWarn elapses the stall is surfaced as a
// status string rather than a failure.
func (l *Loop) awaitReadiness(ctx context.Context) error {
	if l.prober == nil {
		return nil
	}

	l.setTickStatus(StatusAwaitingBackend)
	started := time.Now()
	warned := false

	for {
		pingCtx, cancel := context.WithTimeout(ctx, l.readinessPoll)
		err := l.prober.Ping(pingCtx)
		cancel()
		if err == nil {
			l.setTickStatus(evaluation.StatusNormal)
			return nil
		}

		if !warned && l.readinessWarn > 0 && time.Since(started) > l.readinessWarn {
			warned = true
			l.logger.Warn().Dur("waited", time.Since(started)).Msg("backend still not ready; loop remains idle")
		} else {
			l.logger.Debug().Err(err).Msg("backend not ready yet")
		}

		timer := time.NewTimer(l.readinessPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ProcessTick executes one evaluation tick. It is safe to call directly from
// batch drivers; under the scheduler a tick that would overlap a still
// in-flight one is skipped to avoid duplicate appends.
func (l *Loop) ProcessTick(ctx context.Context, tick time.Time) error {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.logger.Warn().Time("tick", tick).Msg("previous tick still in flight; skipping")
		return nil
	}
	defer l.inFlight.Store(false)

	unlock, proceed, err := l.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		l.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return l.executeTick(ctx, tick)
}

func (l *Loop) executeTick(ctx context.Context, tick time.Time) error {
	snapshot := l.sampler.Next(l.Snapshot())
	l.setSnapshot(snapshot)

	if l.samples != nil {
		if err := l.samples.UpsertMetricSample(ctx, storage.SampleFromSnapshot(snapshot)); err != nil {
			l.logger.Error().Err(err).Time("tick", tick).Msg("failed to persist metric sample")
		}
	}

	interventions, err := evaluation.Evaluate(snapshot, l.thresholds)
	if err != nil {
		if errors.Is(err, evaluation.ErrMalformedSnapshot) {
			l.logger.Error().Err(err).Time("tick", tick).Msg("snapshot rejected; tick skipped")
			return nil
		}
		return fmt.Errorf("evaluate snapshot: %w", err)
	}

	l.setTickStatus(evaluation.TickStatus(len(interventions)))

	// Appends happen in evaluation order; a failed append drops that record
	// and never rolls back ones already written.
	appended := make([]storage.InterventionRecord, 0, len(interventions))
	for _, iv := range interventions {
		rec, appendErr := l.log.AppendIntervention(ctx, iv)
		if appendErr != nil {
			l.logger.Error().Err(appendErr).
				Str("path", string(iv.Path)).
				Str("severity", string(iv.Severity)).
				Time("tick", tick).
				Msg("failed to append intervention; record dropped")
			continue
		}
		l.logger.Info().
			Str("path", string(rec.Path)).
			Str("severity", string(rec.Severity)).
			Str("detail", rec.Description).
			Msg("intervention logged")
		appended = append(appended, rec)
	}

	// health must reflect this tick's records before any alert goes out
	l.refreshHealth(ctx, tick)
	for _, rec := range appended {
		l.dispatch(ctx, rec, tick)
	}

	l.logger.Info().Time("tick", tick).
		Int("interventions", len(interventions)).
		Str("status", l.TickStatus()).
		Str("health", l.Health()).
		Msg("tick evaluated")

	return nil
}

func (l *Loop) dispatch(ctx context.Context, rec storage.InterventionRecord, tick time.Time) {
	if !l.alertsOn || l.notifier == nil {
		return
	}
	if l.criticalOnly && rec.Severity != evaluation.SeverityCritical {
		return
	}

	note := alerting.Notification{
		Record:     rec,
		TickTime:   tick,
		TickStatus: l.TickStatus(),
		Health:     l.Health(),
		Channels:   l.channels,
	}
	if err := l.notifier.Notify(ctx, note); err != nil {
		l.logger.Error().Err(err).Time("tick", tick).Msg("failed to dispatch alert")
	}
}

func (l *Loop) refreshHealth(ctx context.Context, tick time.Time) {
	criticals, err := l.log.CountBySeverity(ctx, evaluation.SeverityCritical)
	if err != nil {
		l.logger.Error().Err(err).Time("tick", tick).Msg("failed to derive cumulative health")
		return
	}
	l.setHealth(evaluation.ClassifyHealth(criticals))
}

func (l *Loop) acquireLock(ctx context.Context) (func(), bool, error) {
	if l.lockKey == 0 || l.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := l.locker.TryAdvisoryLock(ctx, l.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// State reports the loop lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Snapshot returns the most recent metric snapshot.
func (l *Loop) Snapshot() metrics.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loop) setSnapshot(s metrics.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = s
}

// TickStatus reports the latest per-tick status label.
func (l *Loop) TickStatus() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tickStatus
}

func (l *Loop) setTickStatus(status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tickStatus = status
}

// Health reports the cumulative health label.
func (l *Loop) Health() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.health
}

func (l *Loop) setHealth(health string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.health = health
}
