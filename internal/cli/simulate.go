package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"odas-monitor/internal/app"
)

var (
	simulateTicks int
	simulateSeed  int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "以固定种子离线运行 N 个评估 tick",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateTicks <= 0 {
			return errors.New("--ticks 必须大于 0")
		}

		opts := app.SimulateOptions{
			Ticks: simulateTicks,
			Seed:  simulateSeed,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateTicks, "ticks", 20, "Number of evaluation ticks to simulate")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 1, "Random seed for the metric drift")
}
