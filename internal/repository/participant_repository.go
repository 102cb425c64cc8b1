package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/model"
)

// ParticipantRepositoryInterface defines methods used by service
type ParticipantRepositoryInterface interface {
	Get(ctx context.Context, campaignID int, wallet string) (*model.Participant, error)
	ListByCampaign(ctx context.Context, campaignID int) ([]*model.Participant, error)
	Stake(ctx context.Context, campaignID int, wallet string, amount decimal.Decimal, txHash string) (*model.Participant, error)
	CompleteTask(ctx context.Context, campaignID int, wallet string, task model.SocialTask) (*model.Participant, error)
	DeleteUnstaked(ctx context.Context, campaignID int, wallet string) error
}

// ParticipantRepository is the Postgres implementation
type ParticipantRepository struct {
	DB *sql.DB
}

const participantColumns = `id, campaign_id, wallet_address, staked_amount, ticket_count, social_tasks,
    is_winner, prize_index, last_tx_hash, created_at, updated_at`

// Get returns nil, nil when the wallet has no row for the campaign
func (r *ParticipantRepository) Get(ctx context.Context, campaignID int, wallet string) (*model.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE campaign_id=$1 AND wallet_address=$2`
	p, err := scanParticipant(r.DB.QueryRowContext(ctx, query, campaignID, wallet))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *ParticipantRepository) ListByCampaign(ctx context.Context, campaignID int) ([]*model.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE campaign_id=$1 ORDER BY wallet_address`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []*model.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// Stake adds amount to the wallet's stake and the campaign totals in one
// transaction. The campaign row is only touched while it is active and the
// hard cap still has room, so concurrent stakes cannot overshoot it.
func (r *ParticipantRepository) Stake(ctx context.Context, campaignID int, wallet string, amount decimal.Decimal, txHash string) (*model.Participant, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var ticketAmount decimal.Decimal
	err = tx.QueryRowContext(ctx, `
        UPDATE campaigns SET current_amount = current_amount + $1, updated_at = NOW()
        WHERE id = $2 AND status = $3 AND current_amount + $1 <= hard_cap
        RETURNING ticket_amount
    `, amount, campaignID, model.StatusActive).Scan(&ticketAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewValidation("Stake exceeds campaign hard cap or campaign is not active")
	}
	if err != nil {
		return nil, err
	}

	previous := decimal.Zero
	err = tx.QueryRowContext(ctx, `
        SELECT staked_amount FROM participants WHERE campaign_id=$1 AND wallet_address=$2 FOR UPDATE
    `, campaignID, wallet).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	staked := previous.Add(amount)
	campaign := model.Campaign{TicketAmount: ticketAmount}

	query := `
        INSERT INTO participants (campaign_id, wallet_address, staked_amount, ticket_count, last_tx_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        ON CONFLICT (campaign_id, wallet_address) DO UPDATE
        SET staked_amount = EXCLUDED.staked_amount, ticket_count = EXCLUDED.ticket_count,
            last_tx_hash = EXCLUDED.last_tx_hash, updated_at = NOW()
        RETURNING ` + participantColumns
	p, err := scanParticipant(tx.QueryRowContext(ctx, query, campaignID, wallet, staked, campaign.Tickets(staked), txHash))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert participant: %w", err)
	}

	// a zero-stake row (social tasks only) becomes a participant on first stake
	if !previous.IsPositive() {
		if _, err := tx.ExecContext(ctx, `
            UPDATE campaigns SET participant_count = participant_count + 1 WHERE id = $1
        `, campaignID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// CompleteTask marks a social task done, creating a zero-stake row when needed
func (r *ParticipantRepository) CompleteTask(ctx context.Context, campaignID int, wallet string, task model.SocialTask) (*model.Participant, error) {
	query := `
        INSERT INTO participants (campaign_id, wallet_address, social_tasks, created_at, updated_at)
        VALUES ($1, $2, jsonb_build_object($3::text, TRUE), NOW(), NOW())
        ON CONFLICT (campaign_id, wallet_address) DO UPDATE
        SET social_tasks = participants.social_tasks || jsonb_build_object($3::text, TRUE), updated_at = NOW()
        RETURNING ` + participantColumns
	return scanParticipant(r.DB.QueryRowContext(ctx, query, campaignID, wallet, string(task)))
}

// DeleteUnstaked removes a participant row that never staked
func (r *ParticipantRepository) DeleteUnstaked(ctx context.Context, campaignID int, wallet string) error {
	res, err := r.DB.ExecContext(ctx, `
        DELETE FROM participants WHERE campaign_id=$1 AND wallet_address=$2 AND staked_amount = 0
    `, campaignID, wallet)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	p, err := r.Get(ctx, campaignID, wallet)
	if err != nil {
		return err
	}
	if p == nil {
		return appErrors.NewNotFound("wallet %s is not a participant of campaign %d", wallet, campaignID)
	}
	return appErrors.NewConflict("wallet %s has an active stake in campaign %d", wallet, campaignID)
}

func scanParticipant(row rowScanner) (*model.Participant, error) {
	var p model.Participant
	var tasks []byte
	err := row.Scan(
		&p.ID, &p.CampaignID, &p.WalletAddress, &p.StakedAmount, &p.TicketCount, &tasks,
		&p.IsWinner, &p.PrizeIndex, &p.LastTxHash, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.SocialTasksCompleted = model.SocialTasks{}
	if err := json.Unmarshal(tasks, &p.SocialTasksCompleted); err != nil {
		return nil, fmt.Errorf("failed to decode social tasks of participant %d: %w", p.ID, err)
	}
	return &p, nil
}

var _ ParticipantRepositoryInterface = (*ParticipantRepository)(nil)
