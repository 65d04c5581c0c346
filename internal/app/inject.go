package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"odas-monitor/internal/metrics"
	"odas-monitor/internal/service"
	"odas-monitor/internal/storage"
)

// Inject 通过给定的五项指标模拟一次评估与告警流程。
func (a *App) Inject(ctx context.Context, opts InjectOptions) error {
	notifier := a.newNotifier()
	if a.Config.Alerting.Enabled && notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	snapshot := metrics.NewSnapshot(
		opts.Volatility,
		opts.Liquidity,
		opts.Latency,
		opts.Sentiment,
		opts.Anomaly,
		time.Now().UTC(),
	)

	store := storage.NewMemoryStore()
	loop := service.New(a.Config, service.Options{
		Sampler:       staticSampler{snapshot: snapshot},
		Thresholds:    a.thresholds(),
		Interventions: store,
		Samples:       store,
		Notifier:      notifier,
	}, a.Logger)

	if err := loop.ProcessTick(ctx, snapshot.CapturedAt); err != nil {
		return err
	}

	records, err := store.ListRecentInterventions(ctx, 10)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no thresholds crossed")
		return nil
	}
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", rec.Path, rec.Severity, rec.Description)
	}
	return nil
}

// staticSampler ignores drift and always returns the injected snapshot.
type staticSampler struct {
	snapshot metrics.Snapshot
}

func (s staticSampler) Next(prev metrics.Snapshot) metrics.Snapshot {
	return s.snapshot
}

var _ metrics.Sampler = staticSampler{}
