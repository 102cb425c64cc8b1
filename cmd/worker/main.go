package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/app"
	"github.com/unclebandit/squdy-backend/internal/config"
	"github.com/unclebandit/squdy-backend/internal/logging"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "squdy-worker",
	Short: "Consume chain jobs and submit selectWinners / burnTokens transactions",
	RunE:  runWorker,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("squdy-worker %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := checkWorkerConfig(cfg); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.NewChainWorker().Start(a.Queue); err != nil {
		return err
	}

	logger.Info("worker running, waiting for chain jobs",
		zap.String("queue", cfg.Queue.Driver),
		zap.Bool("chain", cfg.Chain.Enabled()),
	)
	<-ctx.Done()
	logger.Info("shutting down worker")
	return nil
}

// checkWorkerConfig rejects setups where the worker could never receive a job
// or do anything with it.
func checkWorkerConfig(cfg *config.Config) error {
	if cfg.Queue.Driver != "amqp" {
		return errors.New("the standalone worker needs queue.driver=amqp; the memory queue is consumed inside the server")
	}
	if cfg.Database.Driver == "memory" {
		return errors.New("the standalone worker needs database.driver=postgres to record transaction hashes")
	}
	if !cfg.Chain.Enabled() {
		return errors.New("chain.rpc_url is required for the worker")
	}
	return nil
}
