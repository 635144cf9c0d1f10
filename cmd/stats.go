package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lmichel/tonectl/app"
	"github.com/lmichel/tonectl/config"
)

var (
	statsStart       string
	statsEnd         string
	statsGranularity string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize device energy consumption over a period",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsStart, "start", "", "period start (yyyyMMddHHmmssZ)")
	statsCmd.Flags().StringVar(&statsEnd, "end", "", "period end (yyyyMMddHHmmssZ)")
	statsCmd.Flags().StringVar(&statsGranularity, "granularity", "day", "sample granularity: day, week or month")
	_ = statsCmd.MarkFlagRequired("start")
	_ = statsCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if err := svc.RefreshOnce(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	points, summary, err := svc.Statistics(ctx, statsStart, statsEnd, statsGranularity)
	if err != nil {
		return fmt.Errorf("statistics: %w", err)
	}

	for _, p := range points {
		fmt.Printf("%s\t%.3f kWh\n", p.Date, p.ConsumptionKWh)
	}
	fmt.Printf("samples: %d\n", summary.Samples)
	fmt.Printf("total:   %.3f kWh\n", summary.TotalKWh)
	fmt.Printf("mean:    %.3f kWh (stddev %.3f)\n", summary.MeanKWh, summary.StdDevKWh)
	fmt.Printf("min/max: %.3f / %.3f kWh\n", summary.MinKWh, summary.MaxKWh)
	return nil
}
