package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/archive"
	"github.com/unclebandit/squdy-backend/internal/draw"
	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/metrics"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/queue"
	"github.com/unclebandit/squdy-backend/internal/repository"
)

// AdminService drives the campaign lifecycle. Every operation checks the
// current status and dates, then moves through model.CanTransition.
type AdminService struct {
	CampaignRepo    repository.CampaignRepositoryInterface
	ParticipantRepo repository.ParticipantRepositoryInterface
	Archive         archive.Store
	Queue           queue.Queue // nil skips on-chain mirroring
	RequiredTasks   []model.SocialTask
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
	Now             func() time.Time
}

func (s *AdminService) Activate(ctx context.Context, id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusPending {
		return nil, appErrors.NewValidation("Only pending campaigns can be activated")
	}
	if s.now().Before(c.StartDate) {
		return nil, appErrors.NewValidation("Campaign start date has not been reached")
	}
	return s.transition(ctx, c, model.StatusActive)
}

func (s *AdminService) Pause(ctx context.Context, id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusActive {
		return nil, appErrors.NewValidation("Only active campaigns can be paused")
	}
	return s.transition(ctx, c, model.StatusPaused)
}

func (s *AdminService) Resume(ctx context.Context, id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusPaused {
		return nil, appErrors.NewValidation("Only paused campaigns can be resumed")
	}
	if !s.now().Before(c.EndDate) {
		return nil, appErrors.NewValidation("Campaign end date has passed")
	}
	return s.transition(ctx, c, model.StatusActive)
}

func (s *AdminService) Close(ctx context.Context, id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusActive && c.Status != model.StatusPaused {
		return nil, appErrors.NewValidation("Only active or paused campaigns can be closed")
	}
	if s.now().Before(c.EndDate) {
		return nil, appErrors.NewValidation("Campaign end date has not been reached")
	}
	return s.transition(ctx, c, model.StatusFinished)
}

// SelectWinners draws among eligible participants, archives the receipt and
// queues the on-chain selection.
func (s *AdminService) SelectWinners(ctx context.Context, id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusFinished {
		return nil, appErrors.NewValidation("Winners can only be selected for finished campaigns")
	}

	participants, err := s.ParticipantRepo.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	entries := make([]model.DrawEntry, 0, len(participants))
	for _, p := range participants {
		if p.Eligible(s.requiredTasks()) {
			entries = append(entries, model.DrawEntry{WalletAddress: p.WalletAddress, Tickets: p.TicketCount})
		}
	}

	receipt, err := draw.Run(c, entries)
	if err != nil {
		return nil, err
	}
	// archived first so stored winners always have a receipt behind them
	if s.Archive != nil {
		if receipt, err = s.archiveReceipt(ctx, receipt); err != nil {
			return nil, err
		}
	}
	if err := s.CampaignRepo.CompleteDraw(ctx, id, receipt); err != nil {
		return nil, err
	}

	s.Metrics.Draw()
	s.Metrics.Transition(string(model.StatusFinished), string(model.StatusWinnersSelected))
	logger(s.Logger).Info("winners selected",
		zap.Int("campaign_id", id),
		zap.Int("eligible", len(entries)),
		zap.Int("winners", len(receipt.Winners)),
		zap.String("seed", receipt.Seed))

	s.enqueue(ctx, model.JobSelectWinners, c)
	return s.CampaignRepo.GetByID(ctx, id)
}

// archiveReceipt stores a fresh receipt. Receipts are write-once: when one is
// already archived, from an earlier attempt or a concurrent request, that one
// is returned and committed instead so the campaign and archive never disagree.
func (s *AdminService) archiveReceipt(ctx context.Context, receipt *model.DrawReceipt) (*model.DrawReceipt, error) {
	err := s.Archive.Put(ctx, receipt)
	if err == nil {
		return receipt, nil
	}
	if !errors.Is(err, archive.ErrReceiptExists) {
		return nil, err
	}

	existing, err := s.Archive.Get(ctx, receipt.CampaignID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("receipt for campaign %d reported as archived but not found", receipt.CampaignID)
	}
	logger(s.Logger).Warn("reusing archived draw receipt",
		zap.Int("campaign_id", receipt.CampaignID), zap.String("seed", existing.Seed))
	return existing, nil
}

func (s *AdminService) BurnTokens(ctx context.Context, id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusWinnersSelected {
		return nil, appErrors.NewValidation("Tokens can only be burned after winners are selected")
	}
	if err := s.CampaignRepo.MarkBurned(ctx, id); err != nil {
		return nil, err
	}

	s.Metrics.Transition(string(model.StatusWinnersSelected), string(model.StatusBurned))
	logger(s.Logger).Info("campaign burned", zap.Int("campaign_id", id), zap.String("amount", c.CurrentAmount.String()))

	s.enqueue(ctx, model.JobBurnTokens, c)
	return s.CampaignRepo.GetByID(ctx, id)
}

func (s *AdminService) transition(ctx context.Context, c *model.Campaign, to model.Status) (*model.Campaign, error) {
	if !model.CanTransition(c.Status, to) {
		return nil, appErrors.NewValidation("Campaign cannot move from %s to %s", c.Status, to)
	}
	if err := s.CampaignRepo.UpdateStatus(ctx, c.ID, c.Status, to); err != nil {
		return nil, err
	}

	s.Metrics.Transition(string(c.Status), string(to))
	logger(s.Logger).Info("campaign status changed",
		zap.Int("campaign_id", c.ID),
		zap.String("from", string(c.Status)),
		zap.String("to", string(to)))
	return s.CampaignRepo.GetByID(ctx, c.ID)
}

// enqueue publishes a chain job. The status change is already committed, so
// a publish failure is logged rather than returned.
func (s *AdminService) enqueue(ctx context.Context, kind model.ChainJobKind, c *model.Campaign) {
	if s.Queue == nil {
		return
	}
	job := model.ChainJob{
		ID:         uuid.NewString(),
		Kind:       kind,
		CampaignID: c.ID,
		ContractID: c.ContractID,
	}
	if err := s.Queue.Publish(ctx, queue.TopicChainJobs, job); err != nil {
		logger(s.Logger).Error("failed to enqueue chain job",
			zap.String("kind", string(kind)), zap.Int("campaign_id", c.ID), zap.Error(err))
	}
}

func (s *AdminService) requiredTasks() []model.SocialTask {
	if len(s.RequiredTasks) == 0 {
		return model.AllSocialTasks
	}
	return s.RequiredTasks
}

func (s *AdminService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
