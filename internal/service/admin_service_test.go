package service_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/squdy-backend/internal/archive"
	"github.com/unclebandit/squdy-backend/internal/draw"
	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/repository"
	"github.com/unclebandit/squdy-backend/internal/service"
)

func TestActivateBeforeStartDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	in := campaignInput(1, "Future")
	in.StartDate = now.Add(time.Hour)
	c, err := f.svc.CreateCampaign(ctx, in)
	require.NoError(t, err)

	_, err = f.admin.Activate(ctx, c.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.StatusCode(err))
	assert.Equal(t, "Campaign start date has not been reached", err.Error())
}

func TestCloseBeforeEndDate(t *testing.T) {
	f := newFixture()
	c := f.activeCampaign(t, 1)

	_, err := f.admin.Close(context.Background(), c.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.StatusCode(err))
	assert.Equal(t, "Campaign end date has not been reached", err.Error())
}

func TestSelectWinnersRequiresFinished(t *testing.T) {
	f := newFixture()
	c := f.activeCampaign(t, 1)

	_, err := f.admin.SelectWinners(context.Background(), c.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.StatusCode(err))
}

func TestBurnWithoutSelection(t *testing.T) {
	f := newFixture()
	c := f.activeCampaign(t, 1)
	f.finish(t, c.ID)

	_, err := f.admin.BurnTokens(context.Background(), c.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.StatusCode(err))
	assert.Empty(t, f.queue.jobs)
}

func TestStatusGuards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeCampaign(t, 1)

	_, err := f.admin.Activate(ctx, c.ID)
	assert.EqualError(t, err, "Only pending campaigns can be activated")
	_, err = f.admin.Resume(ctx, c.ID)
	assert.EqualError(t, err, "Only paused campaigns can be resumed")

	paused, err := f.admin.Pause(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, paused.Status)

	_, err = f.admin.Pause(ctx, c.ID)
	assert.EqualError(t, err, "Only active campaigns can be paused")

	late := *f.admin
	late.Now = func() time.Time { return now.Add(48 * time.Hour) }
	_, err = late.Resume(ctx, c.ID)
	assert.EqualError(t, err, "Campaign end date has passed")

	resumed, err := f.admin.Resume(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, resumed.Status)

	_, err = f.admin.Activate(ctx, 404)
	assert.Equal(t, http.StatusNotFound, appErrors.StatusCode(err))
}

func TestClosePausedCampaign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeCampaign(t, 1)

	_, err := f.admin.Pause(ctx, c.ID)
	require.NoError(t, err)
	f.finish(t, c.ID)

	got, err := f.store.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinished, got.Status)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeCampaign(t, 42)

	// alice and bob are eligible, carol staked but skipped tasks, dave only did tasks
	stakes := map[string]int64{alice: 500, bob: 250, "0xca201": 1000}
	for wallet, amount := range stakes {
		_, err := f.svc.Participate(ctx, c.ID, wallet, decimal.NewFromInt(amount), "0x"+wallet)
		require.NoError(t, err)
	}
	f.completeTasks(t, c.ID, alice)
	f.completeTasks(t, c.ID, bob)
	f.completeTasks(t, c.ID, "0xda7e")

	f.finish(t, c.ID)

	selected, err := f.admin.SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWinnersSelected, selected.Status)
	require.Len(t, selected.Winners, 2)
	assert.NotEmpty(t, selected.DrawSeed)

	winners := map[string]bool{}
	for i, w := range selected.Winners {
		assert.Equal(t, i, w.PrizeIndex)
		winners[w.WalletAddress] = true
	}
	assert.Equal(t, map[string]bool{alice: true, bob: true}, winners)

	// the stored seed replays to the stored winners
	replayed, err := draw.Replay(&model.DrawReceipt{
		Seed:       selected.DrawSeed,
		PrizeCount: 2,
		// entries are drawn in wallet order
		Entries: []model.DrawEntry{
			{WalletAddress: bob, Tickets: 2},
			{WalletAddress: alice, Tickets: 5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, selected.Winners, replayed)

	p, err := f.store.Get(ctx, c.ID, selected.Winners[0].WalletAddress)
	require.NoError(t, err)
	assert.True(t, p.IsWinner)
	require.NotNil(t, p.PrizeIndex)
	assert.Equal(t, 0, *p.PrizeIndex)

	_, err = f.admin.SelectWinners(ctx, c.ID)
	assert.Equal(t, http.StatusBadRequest, appErrors.StatusCode(err))

	burned, err := f.admin.BurnTokens(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBurned, burned.Status)
	assert.True(t, decimal.NewFromInt(1750).Equal(burned.TotalBurned))

	require.Len(t, f.queue.jobs, 2)
	assert.Equal(t, model.JobSelectWinners, f.queue.jobs[0].Kind)
	assert.Equal(t, model.JobBurnTokens, f.queue.jobs[1].Kind)
	assert.Equal(t, uint64(42), f.queue.jobs[1].ContractID)
	assert.NotEqual(t, f.queue.jobs[0].ID, f.queue.jobs[1].ID)

	// settled campaigns refuse further task verification
	_, err = f.svc.VerifySocial(ctx, c.ID, "0xe1e", "twitter_like", "ok")
	assert.EqualError(t, err, "Campaign is already settled")
}

func TestSelectWinnersWithoutEligibleParticipants(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.activeCampaign(t, 1)
	f.finish(t, c.ID)

	selected, err := f.admin.SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, selected.Winners)
	assert.Equal(t, model.StatusWinnersSelected, selected.Status)
}

// staleCampaigns serves a campaign snapshot taken before another request committed
type staleCampaigns struct {
	repository.CampaignRepositoryInterface
	snapshot *model.Campaign
}

func (r *staleCampaigns) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	c := *r.snapshot
	return &c, nil
}

// flakyDraw fails the first CompleteDraw
type flakyDraw struct {
	repository.CampaignRepositoryInterface
	failed bool
}

func (r *flakyDraw) CompleteDraw(ctx context.Context, id int, receipt *model.DrawReceipt) error {
	if !r.failed {
		r.failed = true
		return errors.New("connection reset")
	}
	return r.CampaignRepositoryInterface.CompleteDraw(ctx, id, receipt)
}

func drawFixture(t *testing.T) (*fixture, *model.Campaign) {
	t.Helper()
	f := newFixture()
	store, err := archive.NewBoltStore(filepath.Join(t.TempDir(), "receipts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	f.admin.Archive = store
	f.svc.Archive = store

	c := f.activeCampaign(t, 7)
	for _, wallet := range []string{alice, bob} {
		_, err := f.svc.Participate(context.Background(), c.ID, wallet, decimal.NewFromInt(400), "0x"+wallet)
		require.NoError(t, err)
		f.completeTasks(t, c.ID, wallet)
	}
	f.finish(t, c.ID)
	return f, c
}

func TestSelectWinnersTwiceKeepsArchiveInSync(t *testing.T) {
	f, c := drawFixture(t)
	ctx := context.Background()

	snapshot, err := f.store.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFinished, snapshot.Status)

	selected, err := f.admin.SelectWinners(ctx, c.ID)
	require.NoError(t, err)

	// a second request that read the campaign before the first one committed
	late := *f.admin
	late.CampaignRepo = &staleCampaigns{CampaignRepositoryInterface: f.store, snapshot: snapshot}
	_, err = late.SelectWinners(ctx, c.ID)
	assert.Equal(t, http.StatusConflict, appErrors.StatusCode(err))

	receipt, err := f.svc.GetDrawReceipt(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, selected.DrawSeed, receipt.Seed)
	assert.Equal(t, selected.Winners, receipt.Winners)
	assert.NoError(t, draw.Verify(receipt))
}

func TestSelectWinnersRetryCommitsArchivedReceipt(t *testing.T) {
	f, c := drawFixture(t)
	ctx := context.Background()
	f.admin.CampaignRepo = &flakyDraw{CampaignRepositoryInterface: f.store}

	_, err := f.admin.SelectWinners(ctx, c.ID)
	require.Error(t, err)
	archived, err := f.svc.GetDrawReceipt(ctx, c.ID)
	require.NoError(t, err)

	selected, err := f.admin.SelectWinners(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWinnersSelected, selected.Status)
	assert.Equal(t, archived.Seed, selected.DrawSeed)
	assert.Equal(t, archived.Winners, selected.Winners)
}

func TestSchedulerTick(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	startsSoon, err := f.svc.CreateCampaign(ctx, campaignInput(1, "Starts soon"))
	require.NoError(t, err)
	in := campaignInput(2, "Later")
	in.StartDate = now.Add(2 * time.Hour)
	in.EndDate = now.Add(72 * time.Hour)
	later, err := f.svc.CreateCampaign(ctx, in)
	require.NoError(t, err)

	sched := &service.Scheduler{CampaignRepo: f.store, Admin: f.admin, Interval: time.Minute}
	assert.Equal(t, 1, sched.Tick(ctx))

	got, err := f.store.GetByID(ctx, startsSoon.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)
	got, err = f.store.GetByID(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)

	// two days later the first campaign closes and the second opens
	admin := *f.admin
	admin.Now = func() time.Time { return now.Add(48 * time.Hour) }
	sched.Admin = &admin
	assert.Equal(t, 2, sched.Tick(ctx))
	got, err = f.store.GetByID(ctx, startsSoon.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinished, got.Status)
}
