package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"twapOracle/internal/cache/redis"
	"twapOracle/internal/chain"
	"twapOracle/internal/config"
	"twapOracle/internal/dex"
	"twapOracle/internal/model"
	"twapOracle/internal/oracle"
	"twapOracle/internal/storage"
	"twapOracle/internal/storage/postgres"
	"twapOracle/internal/watcher"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
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
	pairs, err := watcher.ParseAddresses(cfg.Pairs)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("pair list is required")
	}
	period, err := cfg.PeriodSeconds()
	if err != nil {
		return err
	}

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

	deps := watcher.Deps{
		Pairs: func(addr common.Address) (oracle.Pair, error) {
			return dex.NewPairReader(chainClient, addr)
		},
		Clock: chainClient,
	}

	var sinks storage.Sinks
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		deps.States = &postgres.StateStore{Store: store, ChainID: chainID.Uint64()}
		deps.Registry = store
		sinks = append(sinks, store)
	} else {
		deps.States = &storage.FileStateStore{Path: cfg.StateFile, ChainID: chainID.Uint64()}
	}
	if len(sinks) > 0 {
		deps.Sink = sinks
	}

	if cfg.Redis.Addr != "" {
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
		deps.Publisher = redis.NewPriceCache(rdb)
	}

	metaCache := dex.NewTokenMetaCache()
	deps.TokenMeta = func(ctx context.Context, token common.Address) model.TokenMeta {
		return metaCache.Fetch(ctx, chainClient, token, logger)
	}

	runner := watcher.NewRunner(watcher.RunConfig{
		ChainID:      chainID.Uint64(),
		Pairs:        pairs,
		Period:       period,
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Once:         cfg.Once,
	}, deps, logger)

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.Int("pairs", len(pairs)),
		zap.Uint32("period", period),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("state_file", cfg.StateFile),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("out", cfg.Out),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.Bool("once", cfg.Once),
	)

	return runner.Run(ctx)
}
