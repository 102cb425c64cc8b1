package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/squdy-backend/internal/chain"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/queue"
	"github.com/unclebandit/squdy-backend/internal/repository"
	"github.com/unclebandit/squdy-backend/internal/service"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// --- Mock chain ---

type fakeChain struct {
	mu             sync.Mutex
	campaign       *chain.CampaignState
	campaignErr    error
	stakes         map[string]decimal.Decimal
	participantErr error
	sendErr        error
	sent           []string
}

func (f *fakeChain) GetCampaign(ctx context.Context, contractID uint64) (*chain.CampaignState, error) {
	if f.campaignErr != nil {
		return nil, f.campaignErr
	}
	return f.campaign, nil
}

func (f *fakeChain) GetParticipant(ctx context.Context, contractID uint64, wallet string) (*chain.ParticipantState, error) {
	if f.participantErr != nil {
		return nil, f.participantErr
	}
	return &chain.ParticipantState{StakedAmount: f.stakes[wallet]}, nil
}

func (f *fakeChain) SelectWinners(ctx context.Context, contractID uint64) (string, error) {
	return f.send("selectWinners")
}

func (f *fakeChain) BurnTokens(ctx context.Context, contractID uint64) (string, error) {
	return f.send("burnTokens")
}

func (f *fakeChain) send(method string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, method)
	return "0x" + method, nil
}

// --- Mock queue ---

type recordingQueue struct {
	mu   sync.Mutex
	jobs []model.ChainJob
}

func (q *recordingQueue) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var job model.ChainJob
	if err := json.Unmarshal(body, &job); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Subscribe(topic string, handler queue.Handler) error { return nil }
func (q *recordingQueue) Close() error                                        { return nil }

// --- Fixture ---

type fixture struct {
	store *repository.MemoryStore
	svc   *service.CampaignService
	admin *service.AdminService
	queue *recordingQueue
}

func newFixture() *fixture {
	store := repository.NewMemoryStore()
	q := &recordingQueue{}
	return &fixture{
		store: store,
		queue: q,
		svc: &service.CampaignService{
			CampaignRepo:    store,
			ParticipantRepo: store,
			Now:             clock,
		},
		admin: &service.AdminService{
			CampaignRepo:    store,
			ParticipantRepo: store,
			Queue:           q,
			Now:             clock,
		},
	}
}

func campaignInput(contractID uint64, name string) service.CreateCampaignInput {
	return service.CreateCampaignInput{
		ContractID:   contractID,
		Name:         name,
		SoftCap:      decimal.NewFromInt(1000),
		HardCap:      decimal.NewFromInt(10000),
		TicketAmount: decimal.NewFromInt(100),
		StartDate:    now.Add(-time.Hour),
		EndDate:      now.Add(24 * time.Hour),
		Prizes:       []model.Prize{{Name: "Grand", Value: decimal.NewFromInt(500)}, {Name: "Runner-up"}},
	}
}

// activeCampaign creates a campaign and activates it
func (f *fixture) activeCampaign(t *testing.T, contractID uint64) *model.Campaign {
	t.Helper()
	ctx := context.Background()
	c, err := f.svc.CreateCampaign(ctx, campaignInput(contractID, "Campaign "+decimal.NewFromInt(int64(contractID)).String()))
	require.NoError(t, err)
	c, err = f.admin.Activate(ctx, c.ID)
	require.NoError(t, err)
	return c
}

func (f *fixture) completeTasks(t *testing.T, campaignID int, wallet string) {
	t.Helper()
	for _, task := range model.AllSocialTasks {
		_, err := f.svc.VerifySocial(context.Background(), campaignID, wallet, string(task), "https://proof/"+string(task))
		require.NoError(t, err)
	}
}

// finish closes the campaign with a clock past its end date
func (f *fixture) finish(t *testing.T, id int) {
	t.Helper()
	admin := *f.admin
	admin.Now = func() time.Time { return now.Add(48 * time.Hour) }
	_, err := admin.Close(context.Background(), id)
	require.NoError(t, err)
}
