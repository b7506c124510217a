package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"twapOracle/internal/cache/redis"
	"twapOracle/internal/config"
)

func runLatest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLatest(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if !common.IsHexAddress(cfg.Pair) {
		return fmt.Errorf("invalid pair address: %q", cfg.Pair)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		TLSEnabled: cfg.Redis.TLS,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	obs, err := redis.NewPriceCache(rdb).Latest(ctx, cfg.ChainID, common.HexToAddress(cfg.Pair).Hex())
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return fmt.Errorf("no cached averages for pair %s on chain %d", cfg.Pair, cfg.ChainID)
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(obs)
}
