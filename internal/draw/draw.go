// Package draw picks campaign winners with ticket-weighted probability.
//
// Randomness comes from a ChaCha8 stream keyed by a 32-byte seed. The seed is
// generated with crypto/rand and stored in the receipt, so anyone holding the
// receipt can replay the draw and get the same winners.
package draw

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"slices"
	"time"

	"github.com/unclebandit/squdy-backend/internal/model"
)

const SeedSize = 32

type Seed [SeedSize]byte

func NewSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("failed to read random seed: %w", err)
	}
	return s, nil
}

func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

func ParseSeed(h string) (Seed, error) {
	var s Seed
	b, err := hex.DecodeString(h)
	if err != nil {
		return s, fmt.Errorf("invalid seed: %w", err)
	}
	if len(b) != SeedSize {
		return s, fmt.Errorf("invalid seed length %d", len(b))
	}
	copy(s[:], b)
	return s, nil
}

// Pick draws up to prizeCount distinct winners from entries. Entries with no
// tickets never win. Winner i receives prize index i.
func Pick(seed Seed, entries []model.DrawEntry, prizeCount int) []model.Winner {
	pool := make([]model.DrawEntry, 0, len(entries))
	var total int64
	for _, e := range entries {
		if e.Tickets <= 0 {
			continue
		}
		pool = append(pool, e)
		total += e.Tickets
	}

	r := mrand.New(mrand.NewChaCha8(seed))
	winners := []model.Winner{}

	for prize := 0; prize < prizeCount && len(pool) > 0; prize++ {
		ticket := r.Int64N(total)

		idx := 0
		for i, e := range pool {
			if ticket < e.Tickets {
				idx = i
				break
			}
			ticket -= e.Tickets
		}

		picked := pool[idx]
		winners = append(winners, model.Winner{
			WalletAddress: picked.WalletAddress,
			PrizeIndex:    prize,
			Tickets:       picked.Tickets,
		})

		// selected entries leave the pool so they cannot be drawn twice
		total -= picked.Tickets
		pool = slices.Delete(pool, idx, idx+1)
	}

	return winners
}

// Run draws with a fresh seed and returns the receipt describing it.
func Run(campaign *model.Campaign, entries []model.DrawEntry) (*model.DrawReceipt, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}

	var total int64
	for _, e := range entries {
		if e.Tickets > 0 {
			total += e.Tickets
		}
	}

	return &model.DrawReceipt{
		CampaignID:   campaign.ID,
		ContractID:   campaign.ContractID,
		Seed:         seed.String(),
		TotalTickets: total,
		PrizeCount:   len(campaign.Prizes),
		Entries:      entries,
		Winners:      Pick(seed, entries, len(campaign.Prizes)),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Replay recomputes the winners recorded in a receipt.
func Replay(receipt *model.DrawReceipt) ([]model.Winner, error) {
	seed, err := ParseSeed(receipt.Seed)
	if err != nil {
		return nil, err
	}
	return Pick(seed, receipt.Entries, receipt.PrizeCount), nil
}

// Verify replays the receipt and checks the recorded winners match.
func Verify(receipt *model.DrawReceipt) error {
	got, err := Replay(receipt)
	if err != nil {
		return err
	}
	if !slices.Equal(got, receipt.Winners) {
		return fmt.Errorf("receipt winners do not match replay for campaign %d", receipt.CampaignID)
	}
	return nil
}
