package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alephbunnies/bunny_token/internal/config"
	"github.com/alephbunnies/bunny_token/internal/infra"
	"github.com/alephbunnies/bunny_token/internal/ledger"
	"github.com/alephbunnies/bunny_token/internal/logging"
	"github.com/alephbunnies/bunny_token/internal/token"
)

var cmdMigrate = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the Postgres ledger schema",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		cfg, err := config.Load()
		checkf(err, "load config")
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, "tokenctl")
		checkf(err, "connect postgres")
		defer db.Close()

		checkf(ledger.Migrate(ctx, db), "migrate")
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
	},
}

var cmdInit = &cobra.Command{
	Use:   "init",
	Short: "Construct the token from CREATOR_ACCOUNT, MARKETING_WALLET and TOTAL_SUPPLY",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		cfg, err := config.Load()
		checkf(err, "load config")
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, "tokenctl")
		checkf(err, "connect postgres")
		defer db.Close()

		checkf(ledger.Migrate(ctx, db), "migrate")
		tok, err := token.New(ctx, ledger.NewPostgresLedger(db), cfg.TotalSupply, cfg.Creator, cfg.MarketingWallet,
			token.WithLogger(logging.NewCLI(cfg.LogLevel)),
			token.WithAirdropStartTime(cfg.AirdropStartTime),
		)
		checkf(err, "construct token")
		fmt.Fprintf(cmd.OutOrStdout(), "constructed %s for creator %s\n", token.Symbol, tok.Creator())
	},
}

var cmdStatus = &cobra.Command{
	Use:   "status",
	Short: "Print supply, pool and privileged accounts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		cfg, err := config.Load()
		checkf(err, "load config")
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, "tokenctl")
		checkf(err, "connect postgres")
		defer db.Close()

		tok, err := token.Load(ctx, ledger.NewPostgresLedger(db))
		checkf(err, "load token")
		check(printStatus(ctx, cmd, tok))
	},
}

func init() {
	cmdMain.AddCommand(cmdMigrate, cmdInit, cmdStatus)
}

func printStatus(ctx context.Context, cmd *cobra.Command, tok *token.Token) error {
	supply, err := tok.TotalSupply(ctx)
	if err != nil {
		return err
	}
	circulating, err := tok.CirculatingSupply(ctx)
	if err != nil {
		return err
	}
	pool, err := tok.DisbursementPool(ctx)
	if err != nil {
		return err
	}
	privileged, err := tok.PrivilegedAccounts(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "total supply:       %s\n", supply.Dec())
	fmt.Fprintf(w, "circulating supply: %s\n", circulating.Dec())
	fmt.Fprintf(w, "disbursement pool:  %s\n", pool.Dec())
	fmt.Fprintf(w, "airdrop start:      %d\n", uint64(tok.AirdropStartTime()))
	fmt.Fprintln(w, "privileged accounts:")
	for _, a := range privileged {
		fmt.Fprintf(w, "  %s\n", a)
	}
	return nil
}
