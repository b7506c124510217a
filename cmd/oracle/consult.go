package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"twapOracle/internal/chain"
	"twapOracle/internal/config"
	"twapOracle/internal/dex"
	"twapOracle/internal/oracle"
	"twapOracle/internal/storage"
	"twapOracle/internal/storage/postgres"
)

func runConsult(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConsult(cfgFile, cmd.Flags())
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
	if !common.IsHexAddress(cfg.Token) {
		return fmt.Errorf("invalid token address: %q", cfg.Token)
	}
	amount, ok := new(big.Int).SetString(cfg.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("invalid amount: %q", cfg.Amount)
	}
	amountIn, overflow := uint256.FromBig(amount)
	if overflow {
		return fmt.Errorf("amount exceeds 256 bits: %s", cfg.Amount)
	}
	pairAddr := common.HexToAddress(cfg.Pair)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	var states storage.StateStore
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		states = &postgres.StateStore{Store: store, ChainID: chainID.Uint64()}
	} else {
		states = &storage.FileStateStore{Path: cfg.StateFile, ChainID: chainID.Uint64()}
	}

	state, ok, err := states.Load(ctx, pairAddr.Hex())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return fmt.Errorf("no oracle state for pair %s", pairAddr.Hex())
	}

	pair, err := dex.NewPairReader(chainClient, pairAddr)
	if err != nil {
		return err
	}
	o, err := oracle.Restore(pair, chainClient, state, oracle.Config{})
	if err != nil {
		return err
	}
	if !o.Ready() {
		logger.Warn("oracle has not completed an update; quotes are zero", zap.String("pair", pairAddr.Hex()))
	}

	amountOut, err := o.Consult(common.HexToAddress(cfg.Token), amountIn)
	if err != nil {
		if errors.Is(err, oracle.ErrUnknownAsset) {
			return fmt.Errorf("token %s is not in pair %s", cfg.Token, pairAddr.Hex())
		}
		return err
	}

	logger.Debug("consult",
		zap.String("pair", pairAddr.Hex()),
		zap.String("token", cfg.Token),
		zap.String("amount_in", amountIn.ToBig().String()),
		zap.Uint32("block_timestamp_last", state.BlockTimestampLast),
	)
	fmt.Fprintln(cmd.OutOrStdout(), amountOut.ToBig().String())
	return nil
}
