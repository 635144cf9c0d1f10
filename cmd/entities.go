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

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List resolved planning entities",
	RunE:  runEntities,
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
}

func runEntities(cmd *cobra.Command, args []string) error {
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
	infos := svc.Entities()
	if len(infos) == 0 {
		fmt.Println("no planning entities found")
		return nil
	}
	for _, info := range infos {
		marker := " "
		if info.Selected {
			marker = "*"
		}
		fmt.Printf("%s %s\t%s\t(program %s)\n", marker, info.EntityID, info.Title, info.Program)
	}
	return nil
}
