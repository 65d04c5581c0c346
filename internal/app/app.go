package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"odas-monitor/internal/alerting"
	"odas-monitor/internal/config"
	"odas-monitor/internal/evaluation"
	"odas-monitor/internal/feed"
	"odas-monitor/internal/metrics"
	"odas-monitor/internal/scheduler"
	"odas-monitor/internal/server"
	"odas-monitor/internal/service"
	"odas-monitor/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSampler(seed int64) metrics.Sampler {
	return metrics.NewRandomSampler(metrics.RandomSamplerOptions{Seed: seed})
}

func (a *App) initialSnapshot(at time.Time) metrics.Snapshot {
	sim := a.Config.Simulation
	return metrics.NewSnapshot(
		sim.InitialVolatility,
		sim.InitialLiquidity,
		sim.InitialLatency,
		sim.InitialSentiment,
		sim.InitialAnomaly,
		at,
	)
}

func (a *App) thresholds() evaluation.ThresholdTable {
	t := a.Config.Thresholds
	return evaluation.NewThresholdTable(t.VolatilityMax, t.LiquidityMin, t.LatencyMax, t.SentimentMin, t.AnomalyMax)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var interventions storage.InterventionStore
	var samples storage.MetricSampleStore
	var prober storage.ReadinessProber
	if store != nil {
		interventions = store
		samples = store
		prober = store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; using in-memory intervention log")
		mem := storage.NewMemoryStore()
		interventions = mem
		samples = mem
		prober = mem
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	loop := service.New(a.Config, service.Options{
		Scheduler:     sched,
		Sampler:       a.newSampler(a.Config.Simulation.Seed),
		Thresholds:    a.thresholds(),
		Interventions: interventions,
		Samples:       samples,
		Prober:        prober,
		Notifier:      a.newNotifier(),
		Initial:       a.initialSnapshot(time.Now().UTC()),
	}, a.Logger)

	watcher := feed.NewWatcher(interventions, feed.Options{
		PollInterval: a.Config.Feed.PollInterval,
		RecentLimit:  a.Config.Feed.RecentLimit,
	}, a.Logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("feed watcher terminated with error")
		}
	}()

	if a.Config.Server.Enabled {
		srv := server.New(server.Options{
			Addr:    a.Config.Server.Addr,
			Status:  loop,
			State:   func() string { return loop.State().String() },
			Store:   interventions,
			Watcher: watcher,
		}, a.Logger)
		go func() {
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("status server terminated with error")
			}
		}()
		a.Logger.Info().Str("addr", a.Config.Server.Addr).Msg("status server listening")
	}

	a.Logger.Info().Msg("starting evaluation loop")
	err = loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("evaluation loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("evaluation loop stopped")
	return nil
}

// SimulateOptions configure a deterministic offline run.
type SimulateOptions struct {
	Ticks int
	Seed  int64
}

// InjectOptions hold one operator-crafted snapshot.
type InjectOptions struct {
	Volatility float64
	Liquidity  float64
	Latency    float64
	Sentiment  float64
	Anomaly    float64
}

// ExportOptions hold parameters for exporting metric history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
