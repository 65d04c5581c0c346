package cli

import (
	"github.com/spf13/cobra"

	"odas-monitor/internal/app"
)

var (
	injectVolatility float64
	injectLiquidity  float64
	injectLatency    float64
	injectSentiment  float64
	injectAnomaly    float64
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "注入一组指标并触发一次评估与告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.InjectOptions{
			Volatility: injectVolatility,
			Liquidity:  injectLiquidity,
			Latency:    injectLatency,
			Sentiment:  injectSentiment,
			Anomaly:    injectAnomaly,
		}
		return getApp().Inject(cmd.Context(), opts)
	},
}

func init() {
	injectCmd.Flags().Float64Var(&injectVolatility, "volatility", 0.08, "Asset volatility fraction")
	injectCmd.Flags().Float64Var(&injectLiquidity, "liquidity", 250000, "Market liquidity in USD")
	injectCmd.Flags().Float64Var(&injectLatency, "latency", 80, "System latency in milliseconds")
	injectCmd.Flags().Float64Var(&injectSentiment, "sentiment", 0.65, "Public sentiment fraction")
	injectCmd.Flags().Float64Var(&injectAnomaly, "anomaly", 0.20, "Sensor anomaly score fraction")
}
