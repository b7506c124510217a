package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	RPCURL       string
	Pairs        []string
	Period       time.Duration
	PollInterval time.Duration
	StateFile    string
	PGDSN        string
	Out          string
	Redis        RedisConfig
	MaxRetries   int
	RetryBackoff time.Duration
	Once         bool
	LogLevel     string
}

// RedisConfig holds connection settings for the price cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// LoadWatch merges config file, environment variables, and flags into WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"period":        24 * time.Hour,
		"poll-interval": time.Minute,
		"state-file":    "./data/oracle_state.json",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
	})
	if err != nil {
		return WatchConfig{}, err
	}

	cfg := WatchConfig{
		RPCURL:       v.GetString("rpc"),
		Pairs:        getStringSlice(v, "pair"),
		Period:       v.GetDuration("period"),
		PollInterval: v.GetDuration("poll-interval"),
		StateFile:    v.GetString("state-file"),
		PGDSN:        v.GetString("pg-dsn"),
		Out:          v.GetString("out"),
		Redis:        redisConfig(v),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Once:         v.GetBool("once"),
		LogLevel:     v.GetString("log-level"),
	}
	return cfg, nil
}

// PeriodSeconds converts the configured period to whole seconds.
func (c WatchConfig) PeriodSeconds() (uint32, error) {
	if c.Period < time.Second {
		return 0, fmt.Errorf("period must be at least 1s")
	}
	secs := c.Period / time.Second
	if secs > 1<<32-1 {
		return 0, fmt.Errorf("period %s exceeds uint32 seconds", c.Period)
	}
	return uint32(secs), nil
}

// ConsultConfig holds configuration for the consult command.
type ConsultConfig struct {
	RPCURL    string
	Pair      string
	Token     string
	Amount    string
	StateFile string
	PGDSN     string
	LogLevel  string
}

// LoadConsult merges config file, environment variables, and flags into ConsultConfig.
func LoadConsult(cfgFile string, flags *pflag.FlagSet) (ConsultConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"state-file": "./data/oracle_state.json",
	})
	if err != nil {
		return ConsultConfig{}, err
	}

	return ConsultConfig{
		RPCURL:    v.GetString("rpc"),
		Pair:      v.GetString("pair"),
		Token:     v.GetString("token"),
		Amount:    v.GetString("amount"),
		StateFile: v.GetString("state-file"),
		PGDSN:     v.GetString("pg-dsn"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}

// SnapshotConfig holds configuration for the snapshot command.
type SnapshotConfig struct {
	RPCURL   string
	Pair     string
	LogLevel string
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return SnapshotConfig{}, err
	}
	return SnapshotConfig{
		RPCURL:   v.GetString("rpc"),
		Pair:     v.GetString("pair"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// LatestConfig holds configuration for the latest command.
type LatestConfig struct {
	Redis    RedisConfig
	ChainID  uint64
	Pair     string
	LogLevel string
}

// LoadLatest merges config file, environment variables, and flags into LatestConfig.
func LoadLatest(cfgFile string, flags *pflag.FlagSet) (LatestConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"chain-id": uint64(56),
	})
	if err != nil {
		return LatestConfig{}, err
	}
	return LatestConfig{
		Redis:    redisConfig(v),
		ChainID:  v.GetUint64("chain-id"),
		Pair:     v.GetString("pair"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func redisConfig(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Addr:     v.GetString("redis-addr"),
		Password: v.GetString("redis-password"),
		DB:       v.GetInt("redis-db"),
		TLS:      v.GetBool("redis-tls"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
