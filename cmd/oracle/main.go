package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "oracle",
		Short:        "Fixed-window TWAP oracle for V2 pairs",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep pair averages updated once per period",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "RPC URL")
	watchCmd.Flags().StringSlice("pair", nil, "pair addresses (comma-separated)")
	watchCmd.Flags().Duration("period", 24*time.Hour, "minimum averaging window")
	watchCmd.Flags().Duration("poll-interval", time.Minute, "how often to attempt an update")
	watchCmd.Flags().String("state-file", "./data/oracle_state.json", "local oracle state file")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN (replaces the state file)")
	watchCmd.Flags().String("out", "", "optional observations JSONL path")
	watchCmd.Flags().String("redis-addr", "", "optional Redis address for the price cache")
	watchCmd.Flags().String("redis-password", "", "Redis password")
	watchCmd.Flags().Int("redis-db", 0, "Redis database")
	watchCmd.Flags().Bool("redis-tls", false, "connect to Redis over TLS")
	watchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	watchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	watchCmd.Flags().Bool("once", false, "attempt one update per pair and exit")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	consultCmd := &cobra.Command{
		Use:   "consult",
		Short: "Quote an amount using the stored average price",
		RunE:  runConsult,
	}

	consultCmd.Flags().String("rpc", "", "RPC URL")
	consultCmd.Flags().String("pair", "", "pair address")
	consultCmd.Flags().String("token", "", "input token address")
	consultCmd.Flags().String("amount", "", "input amount in base units")
	consultCmd.Flags().String("state-file", "./data/oracle_state.json", "local oracle state file")
	consultCmd.Flags().String("pg-dsn", "", "Postgres DSN (replaces the state file)")
	consultCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(consultCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print stored and current cumulative prices of a pair",
		RunE:  runSnapshot,
	}

	snapshotCmd.Flags().String("rpc", "", "RPC URL")
	snapshotCmd.Flags().String("pair", "", "pair address")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(snapshotCmd)

	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the cached latest observation of a pair",
		RunE:  runLatest,
	}

	latestCmd.Flags().String("redis-addr", "", "Redis address")
	latestCmd.Flags().String("redis-password", "", "Redis password")
	latestCmd.Flags().Int("redis-db", 0, "Redis database")
	latestCmd.Flags().Bool("redis-tls", false, "connect to Redis over TLS")
	latestCmd.Flags().Uint64("chain-id", 56, "chain id the pair lives on")
	latestCmd.Flags().String("pair", "", "pair address")
	latestCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(latestCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
