package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lmichel/tonectl/app"
	"github.com/lmichel/tonectl/config"
)

var submitEntity string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Push the current schedule of an entity to the device",
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitEntity, "entity", "", "planning entity identifier")
	_ = submitCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
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
	if err := svc.Submit(submitEntity); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	// Poll until the submission settles; the controller bounds the wait.
	deadline := time.Now().Add(time.Duration(cfg.Planning.SubmitTimeoutSeconds+2) * time.Second)
	for time.Now().Before(deadline) {
		st := svc.SubmissionStatus(submitEntity)
		if !st.Loading && st.Message != "" {
			if !st.OK {
				return fmt.Errorf("submission failed: %s", st.Message)
			}
			fmt.Println(st.Message)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("submission did not settle in time")
}
