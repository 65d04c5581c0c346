package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"odas-monitor/internal/evaluation"
	"odas-monitor/internal/metrics"
	"odas-monitor/internal/service"
	"odas-monitor/internal/storage"
)

// Simulate 以固定种子离线跑 N 个评估 tick，输出确定性的干预序列与最终状态。
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.Ticks <= 0 {
		return errors.New("simulate ticks 必须大于 0")
	}

	interval := a.Config.Scheduler.Interval
	base := time.Now().UTC().Truncate(interval)

	// the simulated clock advances one interval per tick so logged-at values
	// and capture times are reproducible relative to the base
	tickIndex := 0
	clock := func() time.Time {
		return base.Add(time.Duration(tickIndex) * interval)
	}

	store := storage.NewMemoryStoreWithClock(clock)
	sampler := metrics.NewRandomSampler(metrics.RandomSamplerOptions{Seed: opts.Seed, Now: clock})

	loop := service.New(a.Config, service.Options{
		Sampler:       sampler,
		Thresholds:    a.thresholds(),
		Interventions: store,
		Samples:       store,
		Initial:       a.initialSnapshot(base),
	}, a.Logger)

	for tickIndex = 1; tickIndex <= opts.Ticks; tickIndex++ {
		tick := base.Add(time.Duration(tickIndex) * interval)
		if err := loop.ProcessTick(ctx, tick); err != nil {
			a.Logger.Error().Err(err).Time("tick", tick).Msg("simulated tick failed")
		}
	}

	total, err := store.CountInterventions(ctx)
	if err != nil {
		return err
	}
	records, err := store.ListRecentInterventions(ctx, int(total))
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Logged (UTC)\tPath\tSeverity\tDetail")
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			rec.LoggedAt.UTC().Format(time.RFC3339),
			rec.Path,
			rec.Severity,
			rec.Description,
		)
	}
	writer.Flush()

	criticals, err := store.CountBySeverity(ctx, evaluation.SeverityCritical)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\nticks: %d\ninterventions: %d\nfinal tick status: %s\ncumulative health: %s\n",
		opts.Ticks, total, loop.TickStatus(), evaluation.ClassifyHealth(criticals))
	return nil
}
