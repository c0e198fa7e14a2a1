package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/pkg/config"
	"github.com/mnuel1/spacio-backend/pkg/logger"
)

var (
	cfg  *config.Config
	logr *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "spacio",
		Short:         "Class timetable scheduling tools",
		Long:          "Operator commands for the scheduling backend: migrations, auto-scheduling,\nconflict reports, block plans and timetable exports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err = logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logr != nil {
				_ = logr.Sync()
			}
		},
	}

	root.AddCommand(
		newMigrateCommand(),
		newAutoScheduleCommand(),
		newConflictsCommand(),
		newBlocksCommand(),
		newExportCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
