package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints recent interventions and metric samples.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show records")
	}
	if closeStore != nil {
		defer closeStore()
	}

	records, err := store.ListRecentInterventions(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no interventions logged")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Logged (UTC)\tPath\tSeverity\tDetail")
		for _, rec := range records {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\n",
				rec.LoggedAt.UTC().Format(time.RFC3339),
				rec.Path,
				rec.Severity,
				sanitizeInline(rec.Description),
			)
		}
		writer.Flush()
	}

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no metric samples recorded")
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Captured (UTC)\tVolatility\tLiquidity\tLatency\tSentiment\tAnomaly")
	for _, sample := range samples {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			sample.CapturedAt.UTC().Format(time.RFC3339),
			formatDecimal(sample.AssetVolatility, 3),
			formatDecimal(sample.MarketLiquidity, 0),
			formatDecimal(sample.SystemLatency, 0),
			formatDecimal(sample.PublicSentiment, 3),
			formatDecimal(sample.AnomalyScore, 3),
		)
	}
	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
