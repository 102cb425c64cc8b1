package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/model"
)

// MemoryStore keeps campaigns and participants in process. It implements both
// repository interfaces behind one lock so stakes update campaign totals atomically.
type MemoryStore struct {
	mu           sync.Mutex
	nextID       int
	nextPartID   int
	campaigns    map[int]*model.Campaign
	participants map[int]map[string]*model.Participant
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:    make(map[int]*model.Campaign),
		participants: make(map[int]map[string]*model.Participant),
		now:          time.Now,
	}
}

// ====================== Campaigns ======================

func (s *MemoryStore) Create(ctx context.Context, c *model.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.campaigns {
		if existing.ContractID == c.ContractID || existing.Slug == c.Slug {
			return appErrors.NewConflict("campaign with contract id %d or slug %q already exists", c.ContractID, c.Slug)
		}
	}

	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = s.now()
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	if c.Winners == nil {
		c.Winners = []model.Winner{}
	}
	s.campaigns[c.ID] = copyCampaign(c)
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return copyCampaign(c), nil
}

func (s *MemoryStore) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var filtered []*model.Campaign
	for _, c := range s.campaigns {
		if status != "" && string(c.Status) != status {
			continue
		}
		filtered = append(filtered, c)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID > filtered[j].ID })

	total := len(filtered)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]*model.Campaign, 0, end-offset)
	for _, c := range filtered[offset:end] {
		out = append(out, copyCampaign(c))
	}
	return out, total, nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status model.Status) ([]*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*model.Campaign{}
	for _, c := range s.campaigns {
		if c.Status == status {
			out = append(out, copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id int, from, to model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaignInStatus(id, from)
	if err != nil {
		return err
	}
	c.Status = to
	s.touch(c)
	return nil
}

func (s *MemoryStore) CompleteDraw(ctx context.Context, id int, receipt *model.DrawReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaignInStatus(id, model.StatusFinished)
	if err != nil {
		return err
	}
	c.Winners = append([]model.Winner{}, receipt.Winners...)
	c.DrawSeed = receipt.Seed
	c.Status = model.StatusWinnersSelected
	s.touch(c)

	for _, w := range receipt.Winners {
		if p, ok := s.participants[id][w.WalletAddress]; ok {
			idx := w.PrizeIndex
			p.IsWinner = true
			p.PrizeIndex = &idx
			p.UpdatedAt = s.now()
		}
	}
	return nil
}

func (s *MemoryStore) MarkBurned(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.campaignInStatus(id, model.StatusWinnersSelected)
	if err != nil {
		return err
	}
	c.TotalBurned = c.CurrentAmount
	c.Status = model.StatusBurned
	s.touch(c)
	return nil
}

func (s *MemoryStore) SetTxHash(ctx context.Context, id int, kind model.ChainJobKind, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	switch kind {
	case model.JobSelectWinners:
		c.SelectTxHash = hash
	case model.JobBurnTokens:
		c.BurnTxHash = hash
	default:
		return appErrors.NewValidation("unknown chain job kind %q", kind)
	}
	s.touch(c)
	return nil
}

func (s *MemoryStore) campaignInStatus(id int, status model.Status) (*model.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	if c.Status != status {
		return nil, appErrors.NewConflict("campaign %d is no longer %s", id, status)
	}
	return c, nil
}

func (s *MemoryStore) touch(c *model.Campaign) {
	now := s.now()
	c.UpdatedAt = &now
}

// ====================== Participants ======================

func (s *MemoryStore) Get(ctx context.Context, campaignID int, wallet string) (*model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[campaignID][wallet]
	if !ok {
		return nil, nil
	}
	return copyParticipant(p), nil
}

func (s *MemoryStore) ListByCampaign(ctx context.Context, campaignID int) ([]*model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*model.Participant{}
	for _, p := range s.participants[campaignID] {
		out = append(out, copyParticipant(p))
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].WalletAddress, out[j].WalletAddress) < 0 })
	return out, nil
}

func (s *MemoryStore) Stake(ctx context.Context, campaignID int, wallet string, amount decimal.Decimal, txHash string) (*model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[campaignID]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	if c.Status != model.StatusActive || c.CurrentAmount.Add(amount).GreaterThan(c.HardCap) {
		return nil, appErrors.NewValidation("Stake exceeds campaign hard cap or campaign is not active")
	}

	p := s.participantRow(campaignID, wallet)
	if !p.StakedAmount.IsPositive() {
		c.ParticipantCount++
	}
	p.StakedAmount = p.StakedAmount.Add(amount)
	p.TicketCount = c.Tickets(p.StakedAmount)
	p.LastTxHash = txHash
	p.UpdatedAt = s.now()

	c.CurrentAmount = c.CurrentAmount.Add(amount)
	s.touch(c)

	return copyParticipant(p), nil
}

func (s *MemoryStore) CompleteTask(ctx context.Context, campaignID int, wallet string, task model.SocialTask) (*model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[campaignID]; !ok {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	p := s.participantRow(campaignID, wallet)
	p.SocialTasksCompleted[task] = true
	p.UpdatedAt = s.now()
	return copyParticipant(p), nil
}

func (s *MemoryStore) DeleteUnstaked(ctx context.Context, campaignID int, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[campaignID][wallet]
	if !ok {
		return appErrors.NewNotFound("wallet %s is not a participant of campaign %d", wallet, campaignID)
	}
	if p.StakedAmount.IsPositive() {
		return appErrors.NewConflict("wallet %s has an active stake in campaign %d", wallet, campaignID)
	}
	delete(s.participants[campaignID], wallet)
	return nil
}

// participantRow returns the row for wallet, creating an empty one. Callers hold s.mu.
func (s *MemoryStore) participantRow(campaignID int, wallet string) *model.Participant {
	rows, ok := s.participants[campaignID]
	if !ok {
		rows = make(map[string]*model.Participant)
		s.participants[campaignID] = rows
	}
	p, ok := rows[wallet]
	if !ok {
		s.nextPartID++
		now := s.now()
		p = &model.Participant{
			ID:                   s.nextPartID,
			CampaignID:           campaignID,
			WalletAddress:        wallet,
			StakedAmount:         decimal.Zero,
			SocialTasksCompleted: model.SocialTasks{},
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		rows[wallet] = p
	}
	return p
}

func copyCampaign(c *model.Campaign) *model.Campaign {
	out := *c
	out.Prizes = append([]model.Prize(nil), c.Prizes...)
	out.Winners = append([]model.Winner{}, c.Winners...)
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	return &out
}

func copyParticipant(p *model.Participant) *model.Participant {
	out := *p
	out.SocialTasksCompleted = make(model.SocialTasks, len(p.SocialTasksCompleted))
	for k, v := range p.SocialTasksCompleted {
		out.SocialTasksCompleted[k] = v
	}
	if p.PrizeIndex != nil {
		idx := *p.PrizeIndex
		out.PrizeIndex = &idx
	}
	return &out
}

var (
	_ CampaignRepositoryInterface    = (*MemoryStore)(nil)
	_ ParticipantRepositoryInterface = (*MemoryStore)(nil)
)
