package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/app"
	"github.com/iliyamo/venture-platform/internal/config"
	"github.com/iliyamo/venture-platform/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "platformctl",
	Short: "Operate the venture platform decision engine",
	Long: `platformctl runs maintenance tasks against the platform store:
retention sweeps, claim reconciliation, offline risk scoring and role
registry inspection.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(sweepCmd, reconcileCmd, scoreCmd, rolesCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp loads configuration and builds the application for commands
// that need the store.
func openApp(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return nil, fmt.Errorf("startup: %w", err)
	}
	return a, nil
}
