package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"twapOracle/internal/chain"
	"twapOracle/internal/config"
	"twapOracle/internal/dex"
	"twapOracle/internal/oracle"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Pair) {
		return fmt.Errorf("invalid pair address: %q", cfg.Pair)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	pair, err := dex.NewPairReader(chainClient, common.HexToAddress(cfg.Pair))
	if err != nil {
		return err
	}
	snap, err := pair.Snapshot(ctx)
	if err != nil {
		return err
	}
	now, err := chainClient.Now(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}
	if snap.BlockTime > now {
		now = snap.BlockTime
	}
	ts := uint32(now)
	price0, price1, err := oracle.Extrapolate(snap, ts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pair                    %s\n", pair.Address().Hex())
	fmt.Fprintf(out, "reserve0                %s\n", snap.Reserve0.ToBig().String())
	fmt.Fprintf(out, "reserve1                %s\n", snap.Reserve1.ToBig().String())
	fmt.Fprintf(out, "block_timestamp_last    %d\n", snap.BlockTimestampLast)
	fmt.Fprintf(out, "price0_cumulative_last  %s\n", snap.Price0CumulativeLast.ToBig().String())
	fmt.Fprintf(out, "price1_cumulative_last  %s\n", snap.Price1CumulativeLast.ToBig().String())
	fmt.Fprintf(out, "timestamp               %d\n", ts)
	fmt.Fprintf(out, "price0_cumulative       %s\n", price0.ToBig().String())
	fmt.Fprintf(out, "price1_cumulative       %s\n", price1.ToBig().String())
	return nil
}
