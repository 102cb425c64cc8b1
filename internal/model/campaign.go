// internal/model/campaign.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusActive          Status = "active"
	StatusPaused          Status = "paused"
	StatusFinished        Status = "finished"
	StatusWinnersSelected Status = "winners_selected"
	StatusBurned          Status = "burned"
)

// transitions lists, for each status, the statuses it may move to.
var transitions = map[Status][]Status{
	StatusPending:         {StatusActive},
	StatusActive:          {StatusPaused, StatusFinished},
	StatusPaused:          {StatusActive, StatusFinished},
	StatusFinished:        {StatusWinnersSelected},
	StatusWinnersSelected: {StatusBurned},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusPaused, StatusFinished, StatusWinnersSelected, StatusBurned:
		return true
	}
	return false
}

// CanTransition reports whether a campaign in status from may move to status to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Prize struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Value       decimal.Decimal `json:"value"`
}

type Winner struct {
	WalletAddress string `json:"walletAddress"`
	PrizeIndex    int    `json:"prizeIndex"`
	Tickets       int64  `json:"tickets"`
}

type Campaign struct {
	ID               int             `db:"id" json:"id"`
	ContractID       uint64          `db:"contract_id" json:"contractId"`
	Name             string          `db:"name" json:"name"`
	Slug             string          `db:"slug" json:"slug"`
	Description      string          `db:"description" json:"description"`
	ImageURL         string          `db:"image_url" json:"imageUrl,omitempty"`
	SoftCap          decimal.Decimal `db:"soft_cap" json:"softCap"`
	HardCap          decimal.Decimal `db:"hard_cap" json:"hardCap"`
	TicketAmount     decimal.Decimal `db:"ticket_amount" json:"ticketAmount"`
	CurrentAmount    decimal.Decimal `db:"current_amount" json:"currentAmount"`
	TotalBurned      decimal.Decimal `db:"total_burned" json:"totalBurned"`
	StartDate        time.Time       `db:"start_date" json:"startDate"`
	EndDate          time.Time       `db:"end_date" json:"endDate"`
	Status           Status          `db:"status" json:"status"`
	ParticipantCount int             `db:"participant_count" json:"participantCount"`
	Prizes           []Prize         `db:"prizes" json:"prizes"`
	Winners          []Winner        `db:"winners" json:"winners"`
	DrawSeed         string          `db:"draw_seed" json:"drawSeed,omitempty"`
	SelectTxHash     string          `db:"select_tx_hash" json:"selectTxHash,omitempty"`
	BurnTxHash       string          `db:"burn_tx_hash" json:"burnTxHash,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        *time.Time      `db:"updated_at" json:"updatedAt,omitempty"`
}

// Tickets converts a staked amount into lottery tickets: floor(staked / ticketAmount).
func (c *Campaign) Tickets(staked decimal.Decimal) int64 {
	if !c.TicketAmount.IsPositive() || !staked.IsPositive() {
		return 0
	}
	q, _ := staked.QuoRem(c.TicketAmount, 0)
	return q.IntPart()
}

// Progress is currentAmount/hardCap, 0 when the hard cap is unset.
func (c *Campaign) Progress() float64 {
	if !c.HardCap.IsPositive() {
		return 0
	}
	f, _ := c.CurrentAmount.Div(c.HardCap).Float64()
	return f
}
