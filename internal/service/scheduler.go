package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/repository"
)

// Scheduler activates campaigns whose start date passed and closes those whose
// end date passed, through the same guards as the admin routes.
type Scheduler struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Admin        *AdminService
	Interval     time.Duration
	Logger       *zap.Logger

	sched gocron.Scheduler
}

func (s *Scheduler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
			defer cancel()
			s.Tick(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule lifecycle job: %w", err)
	}

	s.sched = sched
	sched.Start()
	logger(s.Logger).Info("lifecycle scheduler started", zap.Duration("interval", s.Interval))
	return nil
}

func (s *Scheduler) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// Tick runs one pass and returns how many campaigns changed status
func (s *Scheduler) Tick(ctx context.Context) int {
	log := logger(s.Logger)
	now := s.Admin.now()
	changed := 0

	pending, err := s.CampaignRepo.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		log.Error("scheduler: failed to list pending campaigns", zap.Error(err))
	}
	for _, c := range pending {
		if now.Before(c.StartDate) {
			continue
		}
		if _, err := s.Admin.Activate(ctx, c.ID); err != nil {
			log.Warn("scheduler: activate failed", zap.Int("campaign_id", c.ID), zap.Error(err))
			continue
		}
		changed++
	}

	for _, status := range []model.Status{model.StatusActive, model.StatusPaused} {
		campaigns, err := s.CampaignRepo.ListByStatus(ctx, status)
		if err != nil {
			log.Error("scheduler: failed to list campaigns", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		for _, c := range campaigns {
			if now.Before(c.EndDate) {
				continue
			}
			if _, err := s.Admin.Close(ctx, c.ID); err != nil {
				log.Warn("scheduler: close failed", zap.Int("campaign_id", c.ID), zap.Error(err))
				continue
			}
			changed++
		}
	}
	return changed
}
