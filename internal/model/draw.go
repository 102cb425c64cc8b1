package model

import "time"

type DrawEntry struct {
	WalletAddress string `json:"walletAddress"`
	Tickets       int64  `json:"tickets"`
}

// DrawReceipt records everything needed to replay a winner draw.
type DrawReceipt struct {
	CampaignID   int         `json:"campaignId"`
	ContractID   uint64      `json:"contractId"`
	Seed         string      `json:"seed"`
	TotalTickets int64       `json:"totalTickets"`
	PrizeCount   int         `json:"prizeCount"`
	Entries      []DrawEntry `json:"entries"`
	Winners      []Winner    `json:"winners"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type ChainJobKind string

const (
	JobSelectWinners ChainJobKind = "select_winners"
	JobBurnTokens    ChainJobKind = "burn_tokens"
)

// ChainJob asks the worker to mirror a lifecycle decision on the campaign contract.
type ChainJob struct {
	ID         string       `json:"id"`
	Kind       ChainJobKind `json:"kind"`
	CampaignID int          `json:"campaign_id"`
	ContractID uint64       `json:"contract_id"`
	Attempt    int          `json:"attempt"`
}
