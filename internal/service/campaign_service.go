// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/archive"
	"github.com/unclebandit/squdy-backend/internal/chain"
	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/metrics"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo    repository.CampaignRepositoryInterface
	ParticipantRepo repository.ParticipantRepositoryInterface
	Chain           chain.Contracts // nil when no RPC is configured
	Archive         archive.Store
	Verifier        SocialVerifier
	RequiredTasks   []model.SocialTask
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
	Now             func() time.Time
}

type CreateCampaignInput struct {
	ContractID   uint64          `json:"contractId"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"imageUrl"`
	SoftCap      decimal.Decimal `json:"softCap"`
	HardCap      decimal.Decimal `json:"hardCap"`
	TicketAmount decimal.Decimal `json:"ticketAmount"`
	StartDate    time.Time       `json:"startDate"`
	EndDate      time.Time       `json:"endDate"`
	Prizes       []model.Prize   `json:"prizes"`
}

type CampaignStats struct {
	TotalTickets         int64   `json:"totalTickets"`
	EligibleParticipants int     `json:"eligibleParticipants"`
	Progress             float64 `json:"progress"`
	SoftCapReached       bool    `json:"softCapReached"`
	OnChain              bool    `json:"onChain"`
}

type CampaignDetails struct {
	*model.Campaign
	Stats CampaignStats `json:"stats"`
}

// ParticipantStatus is what a wallet sees about its own participation
type ParticipantStatus struct {
	*model.Participant
	Eligible     bool               `json:"eligible"`
	MissingTasks []model.SocialTask `json:"missingTasks"`
	OnChainStake *decimal.Decimal   `json:"onChainStake,omitempty"`
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	if err := validateCampaignInput(in); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		ContractID:    in.ContractID,
		Name:          strings.TrimSpace(in.Name),
		Slug:          slug.Make(in.Name),
		Description:   in.Description,
		ImageURL:      in.ImageURL,
		SoftCap:       in.SoftCap,
		HardCap:       in.HardCap,
		TicketAmount:  in.TicketAmount,
		CurrentAmount: decimal.Zero,
		TotalBurned:   decimal.Zero,
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		Status:        model.StatusPending,
		Prizes:        in.Prizes,
		Winners:       []model.Winner{},
	}
	if c.Slug == "" {
		return nil, appErrors.NewValidation("Campaign name must contain letters or digits")
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	logger(s.Logger).Info("campaign created", zap.Int("campaign_id", c.ID), zap.String("slug", c.Slug))
	return c, nil
}

func validateCampaignInput(in CreateCampaignInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return appErrors.NewValidation("Campaign name is required")
	case in.SoftCap.IsNegative():
		return appErrors.NewValidation("Soft cap cannot be negative")
	case !in.HardCap.GreaterThan(in.SoftCap):
		return appErrors.NewValidation("Hard cap must be greater than soft cap")
	case !in.TicketAmount.IsPositive():
		return appErrors.NewValidation("Ticket amount must be positive")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return appErrors.NewValidation("Start and end dates are required")
	case !in.EndDate.After(in.StartDate):
		return appErrors.NewValidation("End date must be after start date")
	case len(in.Prizes) == 0:
		return appErrors.NewValidation("At least one prize is required")
	}
	for i, p := range in.Prizes {
		if strings.TrimSpace(p.Name) == "" {
			return appErrors.NewValidation("Prize %d needs a name", i+1)
		}
	}
	return nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if status != "" && !model.Status(status).Valid() {
		return nil, nil, appErrors.NewValidation("Unknown campaign status %q", status)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, id int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	participants, err := s.ParticipantRepo.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &CampaignDetails{Campaign: campaign}
	for _, p := range participants {
		details.Stats.TotalTickets += p.TicketCount
		if p.Eligible(s.requiredTasks()) {
			details.Stats.EligibleParticipants++
		}
	}
	details.Stats.OnChain = s.syncFromChain(ctx, campaign)
	details.Stats.Progress = campaign.Progress()
	details.Stats.SoftCapReached = campaign.CurrentAmount.GreaterThanOrEqual(campaign.SoftCap)

	return details, nil
}

// syncFromChain overlays on-chain totals and reports whether it succeeded
func (s *CampaignService) syncFromChain(ctx context.Context, c *model.Campaign) bool {
	if s.Chain == nil {
		return false
	}
	state, err := s.Chain.GetCampaign(ctx, c.ContractID)
	if err != nil {
		logger(s.Logger).Warn("on-chain campaign read failed, using stored data",
			zap.Int("campaign_id", c.ID), zap.Uint64("contract_id", c.ContractID), zap.Error(err))
		return false
	}
	c.CurrentAmount = state.CurrentAmount
	c.ParticipantCount = state.ParticipantCount
	c.TotalBurned = state.TotalBurned
	return true
}

// Participate records a stake for wallet and tops up an existing one
func (s *CampaignService) Participate(ctx context.Context, campaignID int, wallet string, amount decimal.Decimal, txHash string) (*model.Participant, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case c.Status != model.StatusActive:
		return nil, appErrors.NewValidation("Campaign is not active")
	case now.Before(c.StartDate):
		return nil, appErrors.NewValidation("Campaign has not started yet")
	case !now.Before(c.EndDate):
		return nil, appErrors.NewValidation("Campaign has ended")
	case amount.LessThan(c.TicketAmount):
		return nil, appErrors.NewValidation("Stake must be at least %s tokens", c.TicketAmount.String())
	case c.CurrentAmount.Add(amount).GreaterThan(c.HardCap):
		return nil, appErrors.NewValidation("Stake exceeds campaign hard cap")
	}

	if s.Chain != nil {
		if err := s.checkOnChainStake(ctx, c, wallet, amount); err != nil {
			return nil, err
		}
	}

	p, err := s.ParticipantRepo.Stake(ctx, campaignID, wallet, amount, txHash)
	if err != nil {
		return nil, err
	}

	f, _ := amount.Float64()
	s.Metrics.Stake(f)
	logger(s.Logger).Info("stake recorded",
		zap.Int("campaign_id", campaignID),
		zap.String("wallet", wallet),
		zap.String("amount", amount.String()),
		zap.Int64("tickets", p.TicketCount))
	return p, nil
}

// checkOnChainStake requires the contract to already hold the wallet's new total
func (s *CampaignService) checkOnChainStake(ctx context.Context, c *model.Campaign, wallet string, amount decimal.Decimal) error {
	existing, err := s.ParticipantRepo.Get(ctx, c.ID, wallet)
	if err != nil {
		return err
	}
	total := amount
	if existing != nil {
		total = total.Add(existing.StakedAmount)
	}

	state, err := s.Chain.GetParticipant(ctx, c.ContractID, wallet)
	if err != nil {
		return err
	}
	if state.StakedAmount.LessThan(total) {
		return appErrors.NewValidation("On-chain stake of %s does not cover %s", state.StakedAmount.String(), total.String())
	}
	return nil
}

func (s *CampaignService) VerifySocial(ctx context.Context, campaignID int, wallet, task, proof string) (*model.Participant, error) {
	t, ok := model.ParseSocialTask(task)
	if !ok {
		return nil, appErrors.NewValidation("Unknown social task %q", task)
	}

	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status == model.StatusWinnersSelected || c.Status == model.StatusBurned {
		return nil, appErrors.NewValidation("Campaign is already settled")
	}

	verified, err := s.verifier().Verify(ctx, wallet, t, proof)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, appErrors.NewValidation("Social task verification failed")
	}

	return s.ParticipantRepo.CompleteTask(ctx, campaignID, wallet, t)
}

func (s *CampaignService) MyStatus(ctx context.Context, campaignID int, wallet string) (*ParticipantStatus, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	p, err := s.ParticipantRepo.Get(ctx, campaignID, wallet)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, appErrors.NewNotFound("Wallet is not a participant of this campaign")
	}

	status := &ParticipantStatus{
		Participant:  p,
		Eligible:     p.Eligible(s.requiredTasks()),
		MissingTasks: []model.SocialTask{},
	}
	for _, t := range s.requiredTasks() {
		if !p.SocialTasksCompleted[t] {
			status.MissingTasks = append(status.MissingTasks, t)
		}
	}

	if s.Chain != nil {
		state, err := s.Chain.GetParticipant(ctx, c.ContractID, wallet)
		if err != nil {
			logger(s.Logger).Warn("on-chain participant read failed", zap.String("wallet", wallet), zap.Error(err))
		} else {
			status.OnChainStake = &state.StakedAmount
		}
	}
	return status, nil
}

// Leave removes a wallet that verified tasks but never staked
func (s *CampaignService) Leave(ctx context.Context, campaignID int, wallet string) error {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return err
	}
	return s.ParticipantRepo.DeleteUnstaked(ctx, campaignID, wallet)
}

func (s *CampaignService) GetDrawReceipt(ctx context.Context, campaignID int) (*model.DrawReceipt, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	if s.Archive == nil {
		return nil, appErrors.NewNotFound("No draw has been performed for campaign %d", campaignID)
	}
	receipt, err := s.Archive.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, appErrors.NewNotFound("No draw has been performed for campaign %d", campaignID)
	}
	return receipt, nil
}

func (s *CampaignService) ListParticipants(ctx context.Context, campaignID int) ([]*model.Participant, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.ParticipantRepo.ListByCampaign(ctx, campaignID)
}

func (s *CampaignService) requiredTasks() []model.SocialTask {
	if len(s.RequiredTasks) == 0 {
		return model.AllSocialTasks
	}
	return s.RequiredTasks
}

func (s *CampaignService) verifier() SocialVerifier {
	if s.Verifier == nil {
		return MockSocialVerifier{}
	}
	return s.Verifier
}

func (s *CampaignService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
