package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func watchFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.StringSlice("pair", nil, "")
	flags.Duration("period", 24*time.Hour, "")
	flags.Duration("poll-interval", time.Minute, "")
	flags.String("redis-addr", "", "")
	flags.Bool("once", false, "")
	return flags
}

func TestLoadWatchDefaults(t *testing.T) {
	flags := watchFlags()
	if err := flags.Parse([]string{"--rpc", "http://localhost:8545", "--pair", "0x1,0x2"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := LoadWatch("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("rpc mismatch: %s", cfg.RPCURL)
	}
	if len(cfg.Pairs) != 2 || cfg.Pairs[1] != "0x2" {
		t.Fatalf("pairs mismatch: %v", cfg.Pairs)
	}
	if cfg.Period != 24*time.Hour || cfg.PollInterval != time.Minute {
		t.Fatalf("durations mismatch: %s %s", cfg.Period, cfg.PollInterval)
	}
	if cfg.MaxRetries != 5 || cfg.LogLevel != "info" {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
	secs, err := cfg.PeriodSeconds()
	if err != nil || secs != 86400 {
		t.Fatalf("period seconds: %d %v", secs, err)
	}
}

func TestLoadWatchEnvOverride(t *testing.T) {
	t.Setenv("ORACLE_POLL_INTERVAL", "30s")
	t.Setenv("ORACLE_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadWatch("", watchFlags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval mismatch: %s", cfg.PollInterval)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis addr mismatch: %s", cfg.Redis.Addr)
	}
}

func TestLoadConsultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oracle.yaml")
	content := "rpc: http://node:8545\npair: \"0x1111111111111111111111111111111111111111\"\nstate-file: /tmp/state.json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConsult(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://node:8545" || cfg.StateFile != "/tmp/state.json" {
		t.Fatalf("config mismatch: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level default mismatch: %s", cfg.LogLevel)
	}
}

func TestPeriodSecondsRejectsShortPeriod(t *testing.T) {
	cfg := WatchConfig{Period: 500 * time.Millisecond}
	if _, err := cfg.PeriodSeconds(); err == nil {
		t.Fatalf("expected error for sub-second period")
	}
}

func TestSplitAndClean(t *testing.T) {
	got := splitAndClean(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split: %v", got)
	}
}
