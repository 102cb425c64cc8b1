// Package chain talks to the campaign contract and the SQUDY token.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/config"
	"github.com/unclebandit/squdy-backend/internal/model"
)

// ErrNoOperator is returned by write calls when no operator key is configured
var ErrNoOperator = errors.New("chain: no operator key configured")

// CampaignState is the contract's view of a campaign, in token units
type CampaignState struct {
	SoftCap          decimal.Decimal
	HardCap          decimal.Decimal
	TicketAmount     decimal.Decimal
	CurrentAmount    decimal.Decimal
	TotalBurned      decimal.Decimal
	StartDate        time.Time
	EndDate          time.Time
	Status           model.Status
	ParticipantCount int
}

type ParticipantState struct {
	StakedAmount decimal.Decimal
	TicketCount  int64
	IsWinner     bool
}

// Contracts is what the services need from the chain
type Contracts interface {
	GetCampaign(ctx context.Context, contractID uint64) (*CampaignState, error)
	GetParticipant(ctx context.Context, contractID uint64, wallet string) (*ParticipantState, error)
	SelectWinners(ctx context.Context, contractID uint64) (string, error)
	BurnTokens(ctx context.Context, contractID uint64) (string, error)
}

type Client struct {
	eth      *ethclient.Client
	campaign *bind.BoundContract
	token    *bind.BoundContract

	campaignAddr common.Address
	auth         *bind.TransactOpts
	decimals     int32
	timeout      time.Duration
	txTimeout    time.Duration
	logger       *zap.Logger
}

// Dial connects to the RPC endpoint and binds both contracts
func Dial(ctx context.Context, cfg config.ChainConfig, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the Ethereum client: %w", err)
	}

	campaignParsed, err := abi.JSON(strings.NewReader(campaignABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse campaign ABI: %w", err)
	}
	tokenParsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	c := &Client{
		eth:          eth,
		campaignAddr: common.HexToAddress(cfg.CampaignAddress),
		decimals:     cfg.TokenDecimals,
		timeout:      cfg.CallTimeout,
		txTimeout:    cfg.TxTimeout,
		logger:       logger,
	}
	c.campaign = bind.NewBoundContract(c.campaignAddr, campaignParsed, eth, eth, eth)
	if cfg.TokenAddress != "" {
		c.token = bind.NewBoundContract(common.HexToAddress(cfg.TokenAddress), tokenParsed, eth, eth, eth)
	}

	if cfg.OperatorKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid operator key: %w", err)
		}
		chainID := big.NewInt(cfg.ChainID)
		if cfg.ChainID == 0 {
			if chainID, err = eth.ChainID(ctx); err != nil {
				return nil, fmt.Errorf("failed to read chain id: %w", err)
			}
		}
		if c.auth, err = bind.NewKeyedTransactorWithChainID(key, chainID); err != nil {
			return nil, fmt.Errorf("failed to build transactor: %w", err)
		}
		logger.Info("chain operator loaded", zap.String("address", operatorAddress(key).Hex()))
	}

	return c, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) GetCampaign(ctx context.Context, contractID uint64) (*CampaignState, error) {
	out, err := c.call(ctx, c.campaign, "getCampaign", new(big.Int).SetUint64(contractID))
	if err != nil {
		return nil, err
	}
	if len(out) != 9 {
		return nil, fmt.Errorf("getCampaign returned %d values", len(out))
	}

	status, err := StatusFromChain(out[6].(uint8))
	if err != nil {
		return nil, err
	}
	return &CampaignState{
		SoftCap:          ToTokens(out[0].(*big.Int), c.decimals),
		HardCap:          ToTokens(out[1].(*big.Int), c.decimals),
		TicketAmount:     ToTokens(out[2].(*big.Int), c.decimals),
		CurrentAmount:    ToTokens(out[3].(*big.Int), c.decimals),
		StartDate:        time.Unix(out[4].(*big.Int).Int64(), 0).UTC(),
		EndDate:          time.Unix(out[5].(*big.Int).Int64(), 0).UTC(),
		Status:           status,
		ParticipantCount: int(out[7].(*big.Int).Int64()),
		TotalBurned:      ToTokens(out[8].(*big.Int), c.decimals),
	}, nil
}

func (c *Client) GetParticipant(ctx context.Context, contractID uint64, wallet string) (*ParticipantState, error) {
	out, err := c.call(ctx, c.campaign, "getParticipant", new(big.Int).SetUint64(contractID), common.HexToAddress(wallet))
	if err != nil {
		return nil, err
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("getParticipant returned %d values", len(out))
	}
	return &ParticipantState{
		StakedAmount: ToTokens(out[0].(*big.Int), c.decimals),
		TicketCount:  out[1].(*big.Int).Int64(),
		IsWinner:     out[2].(bool),
	}, nil
}

func (c *Client) SelectWinners(ctx context.Context, contractID uint64) (string, error) {
	return c.transact(ctx, c.campaign, "selectWinners", new(big.Int).SetUint64(contractID))
}

func (c *Client) BurnTokens(ctx context.Context, contractID uint64) (string, error) {
	return c.transact(ctx, c.campaign, "burnTokens", new(big.Int).SetUint64(contractID))
}

// StakeTokens stakes from the operator wallet. The allowance must already cover amount.
func (c *Client) StakeTokens(ctx context.Context, contractID uint64, amount decimal.Decimal) (string, error) {
	return c.transact(ctx, c.campaign, "stakeTokens", new(big.Int).SetUint64(contractID), ToWei(amount, c.decimals))
}

// Approve lets the campaign contract pull amount from the operator wallet
func (c *Client) Approve(ctx context.Context, amount decimal.Decimal) (string, error) {
	if c.token == nil {
		return "", errors.New("chain: no token address configured")
	}
	return c.transact(ctx, c.token, "approve", c.campaignAddr, ToWei(amount, c.decimals))
}

func (c *Client) BalanceOf(ctx context.Context, wallet string) (decimal.Decimal, error) {
	if c.token == nil {
		return decimal.Zero, errors.New("chain: no token address configured")
	}
	out, err := c.call(ctx, c.token, "balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return decimal.Zero, err
	}
	return ToTokens(out[0].(*big.Int), c.decimals), nil
}

func (c *Client) Allowance(ctx context.Context, owner string) (decimal.Decimal, error) {
	if c.token == nil {
		return decimal.Zero, errors.New("chain: no token address configured")
	}
	out, err := c.call(ctx, c.token, "allowance", common.HexToAddress(owner), c.campaignAddr)
	if err != nil {
		return decimal.Zero, err
	}
	return ToTokens(out[0].(*big.Int), c.decimals), nil
}

// Operator is the address transactions are sent from
func (c *Client) Operator() (common.Address, error) {
	if c.auth == nil {
		return common.Address{}, ErrNoOperator
	}
	return c.auth.From, nil
}

func (c *Client) call(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) ([]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}

// transact sends the transaction and waits until it is mined, bounded by the tx timeout
func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (string, error) {
	if c.auth == nil {
		return "", ErrNoOperator
	}
	if c.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.txTimeout)
		defer cancel()
	}

	opts := *c.auth
	opts.Context = ctx

	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return "", fmt.Errorf("failed to send %s: %w", method, err)
	}
	c.logger.Info("transaction sent", zap.String("method", method), zap.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("failed waiting for %s %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash().Hex(), fmt.Errorf("%s reverted in block %d", method, receipt.BlockNumber.Uint64())
	}
	return tx.Hash().Hex(), nil
}

func operatorAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

var _ Contracts = (*Client)(nil)
