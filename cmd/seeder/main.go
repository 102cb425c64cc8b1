// cmd/seeder/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/squdy-backend/internal/app"
	"github.com/unclebandit/squdy-backend/internal/archive"
	"github.com/unclebandit/squdy-backend/internal/chain"
	"github.com/unclebandit/squdy-backend/internal/config"
	"github.com/unclebandit/squdy-backend/internal/draw"
	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/logging"
	"github.com/unclebandit/squdy-backend/internal/model"
	"github.com/unclebandit/squdy-backend/internal/service"
)

var (
	configPath string
	seedFile   string
	stakeID    uint64
	stakeAmt   string
)

var rootCmd = &cobra.Command{
	Use:   "squdy-seeder",
	Short: "Development helpers: demo campaigns, test stakes and draw verification",
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo campaigns (or the ones listed in --file)",
	RunE:  runSeed,
}

var stakeCmd = &cobra.Command{
	Use:   "stake",
	Short: "Approve and stake SQUDY from the operator wallet",
	RunE:  runStake,
}

var verifyCmd = &cobra.Command{
	Use:   "verify-draw <campaign-id>",
	Short: "Replay an archived draw receipt and check its winners",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerifyDraw,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "JSON array of campaigns to create")

	stakeCmd.Flags().Uint64Var(&stakeID, "campaign", 0, "on-chain campaign id")
	stakeCmd.Flags().StringVar(&stakeAmt, "amount", "", "amount of SQUDY to stake")
	stakeCmd.MarkFlagRequired("campaign")
	stakeCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(seedCmd, stakeCmd, verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	inputs := demoCampaigns(time.Now().UTC())
	if seedFile != "" {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", seedFile, err)
		}
		inputs = nil
		if err := json.Unmarshal(data, &inputs); err != nil {
			return fmt.Errorf("failed to parse %s: %w", seedFile, err)
		}
	}

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := seedCampaigns(cmd.Context(), a.CampaignService, inputs, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d of %d campaigns\n", created, len(inputs))
	return nil
}

// seedCampaigns creates each campaign, skipping ones that already exist.
func seedCampaigns(ctx context.Context, svc *service.CampaignService, inputs []service.CreateCampaignInput, logger *zap.Logger) (int, error) {
	created := 0
	for _, in := range inputs {
		c, err := svc.CreateCampaign(ctx, in)
		if appErrors.StatusCode(err) == http.StatusConflict {
			logger.Info("campaign already exists, skipping", zap.String("name", in.Name))
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", in.Name, err)
		}
		logger.Info("seeded campaign", zap.Int("id", c.ID), zap.String("slug", c.Slug))
		created++
	}
	return created, nil
}

func demoCampaigns(now time.Time) []service.CreateCampaignInput {
	day := 24 * time.Hour
	return []service.CreateCampaignInput{
		{
			ContractID:   1,
			Name:         "Genesis Burn",
			Description:  "The first SQUDY burn-to-win campaign.",
			SoftCap:      decimal.NewFromInt(50_000),
			HardCap:      decimal.NewFromInt(500_000),
			TicketAmount: decimal.NewFromInt(100),
			StartDate:    now.Add(-day),
			EndDate:      now.Add(7 * day),
			Prizes: []model.Prize{
				{Name: "Hardware wallet", Value: decimal.NewFromInt(150)},
				{Name: "SQUDY merch pack", Value: decimal.NewFromInt(60)},
			},
		},
		{
			ContractID:   2,
			Name:         "Weekend Squid Hunt",
			Description:  "Short campaign with a single grand prize.",
			SoftCap:      decimal.NewFromInt(10_000),
			HardCap:      decimal.NewFromInt(100_000),
			TicketAmount: decimal.NewFromInt(50),
			StartDate:    now.Add(day),
			EndDate:      now.Add(3 * day),
			Prizes: []model.Prize{
				{Name: "Grand prize", Value: decimal.NewFromInt(1_000)},
			},
		},
		{
			ContractID:   3,
			Name:         "Deep Sea Jackpot",
			SoftCap:      decimal.NewFromInt(100_000),
			HardCap:      decimal.NewFromInt(1_000_000),
			TicketAmount: decimal.NewFromInt(250),
			StartDate:    now.Add(2 * day),
			EndDate:      now.Add(30 * day),
			Prizes: []model.Prize{
				{Name: "First", Value: decimal.NewFromInt(5_000)},
				{Name: "Second", Value: decimal.NewFromInt(2_500)},
				{Name: "Third", Value: decimal.NewFromInt(1_000)},
			},
		},
	}
}

func runStake(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount, err := decimal.NewFromString(stakeAmt)
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("invalid amount %q", stakeAmt)
	}
	if !cfg.Chain.Enabled() {
		return errors.New("chain.rpc_url is required to stake")
	}

	ctx := cmd.Context()
	client, err := chain.Dial(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	operator, err := client.Operator()
	if err != nil {
		return err
	}
	balance, err := client.BalanceOf(ctx, operator.Hex())
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("operator %s holds %s SQUDY, need %s", operator.Hex(), balance, amount)
	}

	allowance, err := client.Allowance(ctx, operator.Hex())
	if err != nil {
		return err
	}
	if allowance.LessThan(amount) {
		tx, err := client.Approve(ctx, amount)
		if err != nil {
			return err
		}
		fmt.Printf("Approved %s SQUDY: %s\n", amount, tx)
	}

	tx, err := client.StakeTokens(ctx, stakeID, amount)
	if err != nil {
		return err
	}
	fmt.Printf("Staked %s SQUDY in campaign %d: %s\n", amount, stakeID, tx)
	return nil
}

func runVerifyDraw(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid campaign id %q", args[0])
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := archive.New(cmd.Context(), cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	receipt, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if receipt == nil {
		return fmt.Errorf("no draw receipt archived for campaign %d", id)
	}
	if err := draw.Verify(receipt); err != nil {
		return err
	}

	fmt.Printf("Draw for campaign %d verified: seed %s, %d tickets\n", id, receipt.Seed, receipt.TotalTickets)
	for _, w := range receipt.Winners {
		fmt.Printf("  prize %d -> %s (%d tickets)\n", w.PrizeIndex, w.WalletAddress, w.Tickets)
	}
	return nil
}
