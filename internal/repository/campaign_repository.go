package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	ListByStatus(ctx context.Context, status model.Status) ([]*model.Campaign, error)

	// Lifecycle
	UpdateStatus(ctx context.Context, id int, from, to model.Status) error
	CompleteDraw(ctx context.Context, id int, receipt *model.DrawReceipt) error
	MarkBurned(ctx context.Context, id int) error
	SetTxHash(ctx context.Context, id int, kind model.ChainJobKind, hash string) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, contract_id, name, slug, description, image_url, soft_cap, hard_cap, ticket_amount,
    current_amount, total_burned, start_date, end_date, status, participant_count, prizes, winners,
    draw_seed, select_tx_hash, burn_tx_hash, created_at, updated_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	prizes, err := json.Marshal(c.Prizes)
	if err != nil {
		return fmt.Errorf("failed to encode prizes: %w", err)
	}

	query := `
        INSERT INTO campaigns (contract_id, name, slug, description, image_url, soft_cap, hard_cap, ticket_amount,
            start_date, end_date, status, prizes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
        RETURNING id, created_at
    `
	err = r.DB.QueryRowContext(ctx, query,
		c.ContractID, c.Name, c.Slug, c.Description, c.ImageURL, c.SoftCap, c.HardCap, c.TicketAmount,
		c.StartDate, c.EndDate, c.Status, prizes,
	).Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err) {
		return appErrors.NewConflict("campaign with contract id %d or slug %q already exists", c.ContractID, c.Slug)
	}
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		filter := fmt.Sprintf(" AND status=$%d", argPos)
		query += filter
		countQuery += filter
		args = append(args, status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

func (r *CampaignRepository) ListByStatus(ctx context.Context, status model.Status) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status=$1 ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// ====================== Lifecycle ======================

// UpdateStatus moves a campaign from one status to another. It fails with a
// conflict when the stored status is no longer from.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int, from, to model.Status) error {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	res, err := r.DB.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return err
	}
	return r.expectOne(ctx, res, id, "campaign %d is no longer %s", id, from)
}

// CompleteDraw stores the winners, flags winning participants and moves the
// campaign to winners_selected in one transaction.
func (r *CampaignRepository) CompleteDraw(ctx context.Context, id int, receipt *model.DrawReceipt) error {
	winners, err := json.Marshal(receipt.Winners)
	if err != nil {
		return fmt.Errorf("failed to encode winners: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE campaigns SET winners=$1, draw_seed=$2, status=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5
    `, winners, receipt.Seed, model.StatusWinnersSelected, id, model.StatusFinished)
	if err != nil {
		return err
	}
	if err := r.expectOne(ctx, res, id, "campaign %d is no longer %s", id, model.StatusFinished); err != nil {
		return err
	}

	for _, w := range receipt.Winners {
		_, err := tx.ExecContext(ctx, `
            UPDATE participants SET is_winner=TRUE, prize_index=$1, updated_at=NOW()
            WHERE campaign_id=$2 AND wallet_address=$3
        `, w.PrizeIndex, id, w.WalletAddress)
		if err != nil {
			return fmt.Errorf("failed to flag winner %s: %w", w.WalletAddress, err)
		}
	}

	return tx.Commit()
}

// MarkBurned records the whole stake as burned and closes the lifecycle.
func (r *CampaignRepository) MarkBurned(ctx context.Context, id int) error {
	query := `
        UPDATE campaigns SET total_burned=current_amount, status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
    `
	res, err := r.DB.ExecContext(ctx, query, model.StatusBurned, id, model.StatusWinnersSelected)
	if err != nil {
		return err
	}
	return r.expectOne(ctx, res, id, "campaign %d is no longer %s", id, model.StatusWinnersSelected)
}

func (r *CampaignRepository) SetTxHash(ctx context.Context, id int, kind model.ChainJobKind, hash string) error {
	var column string
	switch kind {
	case model.JobSelectWinners:
		column = "select_tx_hash"
	case model.JobBurnTokens:
		column = "burn_tx_hash"
	default:
		return fmt.Errorf("unknown chain job kind %q", kind)
	}

	query := `UPDATE campaigns SET ` + column + `=$1, updated_at=NOW() WHERE id=$2`
	res, err := r.DB.ExecContext(ctx, query, hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

// expectOne turns a zero-row update into not-found or a conflict
func (r *CampaignRepository) expectOne(ctx context.Context, res sql.Result, id int, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM campaigns WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return appErrors.NewCampaignNotFound(id)
	}
	return appErrors.NewConflict(format, args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var prizes, winners []byte
	err := row.Scan(
		&c.ID, &c.ContractID, &c.Name, &c.Slug, &c.Description, &c.ImageURL,
		&c.SoftCap, &c.HardCap, &c.TicketAmount, &c.CurrentAmount, &c.TotalBurned,
		&c.StartDate, &c.EndDate, &c.Status, &c.ParticipantCount, &prizes, &winners,
		&c.DrawSeed, &c.SelectTxHash, &c.BurnTxHash, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(prizes, &c.Prizes); err != nil {
		return nil, fmt.Errorf("failed to decode prizes of campaign %d: %w", c.ID, err)
	}
	if err := json.Unmarshal(winners, &c.Winners); err != nil {
		return nil, fmt.Errorf("failed to decode winners of campaign %d: %w", c.ID, err)
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
