package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/unclebandit/squdy-backend/internal/model"
)

// ToTokens converts a raw token amount into whole-token units
func ToTokens(wei *big.Int, decimals int32) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -decimals)
}

// ToWei converts whole-token units into the raw amount, truncating extra precision
func ToWei(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// chainStatuses follows the order of the contract's CampaignStatus enum
var chainStatuses = []model.Status{
	model.StatusPending,
	model.StatusActive,
	model.StatusPaused,
	model.StatusFinished,
	model.StatusWinnersSelected,
	model.StatusBurned,
}

func StatusFromChain(v uint8) (model.Status, error) {
	if int(v) >= len(chainStatuses) {
		return "", fmt.Errorf("unknown on-chain campaign status %d", v)
	}
	return chainStatuses[v], nil
}
