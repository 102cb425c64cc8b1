// Package app wires configuration into repositories, services and clients.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/archive"
	"github.com/unclebandit/squdy-backend/internal/chain"
	"github.com/unclebandit/squdy-backend/internal/config"
	"github.com/unclebandit/squdy-backend/internal/db"
	"github.com/unclebandit/squdy-backend/internal/metrics"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/queue"
	"github.com/unclebandit/squdy-backend/internal/repository"
	"github.com/unclebandit/squdy-backend/internal/service"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	DB           *sql.DB // nil with the memory driver
	Campaigns    repository.CampaignRepositoryInterface
	Participants repository.ParticipantRepositoryInterface
	Archive      archive.Store
	Chain        *chain.Client // nil when chain.rpc_url is empty
	Queue        queue.Queue

	CampaignService *service.CampaignService
	AdminService    *service.AdminService
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	store, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open receipt archive: %w", err)
	}
	a.Archive = store

	if cfg.Chain.Enabled() {
		client, err := chain.Dial(ctx, cfg.Chain, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Chain = client
	}

	if err := a.openQueue(); err != nil {
		a.Close()
		return nil, err
	}

	tasks := RequiredTasks(cfg)
	a.CampaignService = &service.CampaignService{
		CampaignRepo:    a.Campaigns,
		ParticipantRepo: a.Participants,
		Chain:           a.Contracts(),
		Archive:         a.Archive,
		Verifier:        service.MockSocialVerifier{},
		RequiredTasks:   tasks,
		Metrics:         a.Metrics,
		Logger:          logger.Named("campaigns"),
	}
	a.AdminService = &service.AdminService{
		CampaignRepo:    a.Campaigns,
		ParticipantRepo: a.Participants,
		Archive:         a.Archive,
		Queue:           a.Queue,
		RequiredTasks:   tasks,
		Metrics:         a.Metrics,
		Logger:          logger.Named("admin"),
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case "memory":
		mem := repository.NewMemoryStore()
		a.Campaigns, a.Participants = mem, mem
		a.Logger.Warn("⚠️ using in-memory store, data is lost on restart")
		return nil
	default:
		conn, err := db.Open(ctx, a.Config.Database, a.Logger)
		if err != nil {
			return err
		}
		a.DB = conn
		a.Campaigns = &repository.CampaignRepository{DB: conn}
		a.Participants = &repository.ParticipantRepository{DB: conn}
		return nil
	}
}

func (a *App) openQueue() error {
	switch a.Config.Queue.Driver {
	case "amqp":
		q, err := queue.DialAMQP(a.Config.Queue.URL, a.Config.Queue.MaxRetries, a.Logger.Named("queue"))
		if err != nil {
			return err
		}
		a.Queue = q
	default:
		a.Queue = queue.NewInMemoryQueue(a.Config.Queue.MaxRetries, a.Logger.Named("queue"))
	}
	return nil
}

// Contracts returns the chain client as an interface, nil when disabled
func (a *App) Contracts() chain.Contracts {
	if a.Chain == nil {
		return nil
	}
	return a.Chain
}

// NewChainWorker builds the worker that consumes chain jobs
func (a *App) NewChainWorker() *service.ChainWorker {
	return service.NewChainWorker(a.Campaigns, a.Contracts(), a.Metrics, a.Logger.Named("worker"))
}

func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Chain != nil {
		a.Chain.Close()
	}
	if a.Archive != nil {
		errs = append(errs, a.Archive.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// RequiredTasks converts the configured task names. Config validation has
// already rejected unknown names.
func RequiredTasks(cfg *config.Config) []model.SocialTask {
	tasks := make([]model.SocialTask, 0, len(cfg.RequiredTasks))
	for _, name := range cfg.RequiredTasks {
		if t, ok := model.ParseSocialTask(name); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}
