package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/chain"
	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/metrics"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/queue"
)

// TxRecorder defines the methods the worker needs
type TxRecorder interface {
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	SetTxHash(ctx context.Context, id int, kind model.ChainJobKind, hash string) error
}

// ChainWorker mirrors lifecycle decisions onto the campaign contract. Each
// transaction is sent at most once per job: a job whose hash is already on
// the campaign is skipped, and a mined hash that failed to save is only
// re-saved on retry.
type ChainWorker struct {
	CampaignRepo TxRecorder
	Chain        chain.Contracts
	Metrics      *metrics.Metrics
	Logger       *zap.Logger

	mu    sync.Mutex
	mined map[string]string // job id -> tx hash not yet recorded
}

// Constructor
func NewChainWorker(repo TxRecorder, contracts chain.Contracts, m *metrics.Metrics, logger *zap.Logger) *ChainWorker {
	return &ChainWorker{
		CampaignRepo: repo,
		Chain:        contracts,
		Metrics:      m,
		Logger:       logger,
	}
}

// Start subscribes the worker to the chain job topic
func (w *ChainWorker) Start(q queue.Queue) error {
	return q.Subscribe(queue.TopicChainJobs, w.Handle)
}

// Handle processes one job. Returned errors are retried by the queue.
func (w *ChainWorker) Handle(ctx context.Context, body []byte) error {
	var job model.ChainJob
	if err := json.Unmarshal(body, &job); err != nil {
		logger(w.Logger).Warn("invalid chain job, dropping", zap.Error(err))
		return nil // no retry
	}
	log := logger(w.Logger).With(
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.Int("campaign_id", job.CampaignID),
		zap.Uint64("contract_id", job.ContractID))

	if w.Chain == nil {
		log.Info("no chain client configured, skipping job")
		w.Metrics.ChainJob(string(job.Kind), "skipped")
		return nil
	}

	var send func(context.Context, uint64) (string, error)
	switch job.Kind {
	case model.JobSelectWinners:
		send = w.Chain.SelectWinners
	case model.JobBurnTokens:
		send = w.Chain.BurnTokens
	default:
		log.Warn("unknown chain job kind, dropping")
		w.Metrics.ChainJob(string(job.Kind), "dropped")
		return nil
	}

	c, err := w.CampaignRepo.GetByID(ctx, job.CampaignID)
	if appErrors.IsNotFound(err) {
		log.Warn("campaign not found, dropping")
		w.Metrics.ChainJob(string(job.Kind), "dropped")
		return nil
	}
	if err != nil {
		w.Metrics.ChainJob(string(job.Kind), "failed")
		return err
	}
	if recorded := recordedTx(c, job.Kind); recorded != "" {
		log.Info("transaction already recorded, skipping", zap.String("tx", recorded))
		w.Metrics.ChainJob(string(job.Kind), "skipped")
		return nil
	}

	hash, ok := w.pending(job.ID)
	if ok {
		log.Info("transaction already mined, recording it", zap.String("tx", hash))
	} else {
		if hash, err = send(ctx, job.ContractID); err != nil {
			w.Metrics.ChainJob(string(job.Kind), "failed")
			return fmt.Errorf("%s for campaign %d: %w", job.Kind, job.CampaignID, err)
		}
		w.remember(job.ID, hash)
	}

	if err := w.CampaignRepo.SetTxHash(ctx, job.CampaignID, job.Kind, hash); err != nil {
		w.Metrics.ChainJob(string(job.Kind), "failed")
		return fmt.Errorf("record %s tx %s: %w", job.Kind, hash, err)
	}
	w.forget(job.ID)

	w.Metrics.ChainJob(string(job.Kind), "ok")
	log.Info("chain job completed", zap.String("tx", hash))
	return nil
}

func recordedTx(c *model.Campaign, kind model.ChainJobKind) string {
	if kind == model.JobSelectWinners {
		return c.SelectTxHash
	}
	return c.BurnTxHash
}

func (w *ChainWorker) pending(jobID string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	hash, ok := w.mined[jobID]
	return hash, ok
}

func (w *ChainWorker) remember(jobID, hash string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mined == nil {
		w.mined = make(map[string]string)
	}
	w.mined[jobID] = hash
}

func (w *ChainWorker) forget(jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.mined, jobID)
}
