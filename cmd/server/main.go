// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/squdy-backend/internal/app"
	"github.com/unclebandit/squdy-backend/internal/auth"
	"github.com/unclebandit/squdy-backend/internal/config"
	"github.com/unclebandit/squdy-backend/internal/controller"
	"github.com/unclebandit/squdy-backend/internal/db"
	"github.com/unclebandit/squdy-backend/internal/handler"
	"github.com/unclebandit/squdy-backend/internal/logging"
	"github.com/unclebandit/squdy-backend/internal/service"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "squdy-server",
	Short: "Squdy burn-to-win campaign API",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the Postgres schema",
	RunE:  runMigrate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("squdy-server %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
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

	// With the in-process queue nobody else consumes chain jobs
	if cfg.Queue.Driver != "amqp" {
		if err := a.NewChainWorker().Start(a.Queue); err != nil {
			return err
		}
	}

	var scheduler *service.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = &service.Scheduler{
			CampaignRepo: a.Campaigns,
			Admin:        a.AdminService,
			Interval:     cfg.Scheduler.Interval,
			Logger:       logger.Named("scheduler"),
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	health := &handler.HealthHandler{Version: version}
	if a.DB != nil {
		health.DB = a.DB
	}

	routerCfg := controller.RouterConfig{
		Campaigns: &controller.CampaignController{CampaignService: a.CampaignService},
		Admin: &controller.AdminController{
			CampaignService: a.CampaignService,
			AdminService:    a.AdminService,
		},
		Auth:    auth.NewVerifier(cfg.Auth),
		Health:  health,
		Metrics: a.Metrics,
		Logger:  logger.Named("http"),
	}
	if a.Metrics != nil && cfg.Metrics.ListenAddr == "" {
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	servers := []*http.Server{{
		Addr:         cfg.Server.ListenAddr,
		Handler:      controller.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}
	if a.Metrics != nil && cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, a.Metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("🚀 listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.Driver == "memory" {
		return errors.New("migrate needs database.driver=postgres")
	}

	conn, err := db.Open(cmd.Context(), cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.Migrate(cmd.Context(), conn); err != nil {
		return err
	}
	logger.Info("✅ schema is up to date")
	return nil
}
