package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SocialTask string

const (
	TaskTwitterFollow  SocialTask = "twitter_follow"
	TaskTwitterLike    SocialTask = "twitter_like"
	TaskTwitterRetweet SocialTask = "twitter_retweet"
	TaskTelegramJoin   SocialTask = "telegram_join"
	TaskDiscordJoin    SocialTask = "discord_join"
)

// AllSocialTasks is the default set of tasks a participant must complete.
var AllSocialTasks = []SocialTask{
	TaskTwitterFollow,
	TaskTwitterLike,
	TaskTwitterRetweet,
	TaskTelegramJoin,
	TaskDiscordJoin,
}

func ParseSocialTask(s string) (SocialTask, bool) {
	for _, t := range AllSocialTasks {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// SocialTasks maps a task to whether it has been verified.
type SocialTasks map[SocialTask]bool

// Completed reports whether every task in required is verified.
func (s SocialTasks) Completed(required []SocialTask) bool {
	for _, t := range required {
		if !s[t] {
			return false
		}
	}
	return true
}

type Participant struct {
	ID                   int             `db:"id" json:"id"`
	CampaignID           int             `db:"campaign_id" json:"campaignId"`
	WalletAddress        string          `db:"wallet_address" json:"walletAddress"`
	StakedAmount         decimal.Decimal `db:"staked_amount" json:"stakedAmount"`
	TicketCount          int64           `db:"ticket_count" json:"ticketCount"`
	SocialTasksCompleted SocialTasks     `db:"social_tasks" json:"socialTasksCompleted"`
	IsWinner             bool            `db:"is_winner" json:"isWinner"`
	PrizeIndex           *int            `db:"prize_index" json:"prizeIndex,omitempty"`
	LastTxHash           string          `db:"last_tx_hash" json:"lastTxHash,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updatedAt"`
}

// Eligible reports whether the participant can enter the draw.
func (p *Participant) Eligible(required []SocialTask) bool {
	return p.TicketCount > 0 && p.SocialTasksCompleted.Completed(required)
}
