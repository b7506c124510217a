package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"twapOracle/internal/model"
)

// ErrNotFound is returned when no averages are cached for a pair.
var ErrNotFound = errors.New("redis: not found")

// PriceCache stores the latest observation of each pair as a hash at
// "twap:{chainID}:{pair}".
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.rdb}
}

func averageKey(chainID uint64, pair string) string {
	return "twap:" + strconv.FormatUint(chainID, 10) + ":" + strings.ToLower(pair)
}

// Publish replaces the cached averages for the observation's pair.
func (pc *PriceCache) Publish(ctx context.Context, obs model.Observation) error {
	fields := map[string]interface{}{
		"block_timestamp": strconv.FormatUint(uint64(obs.BlockTimestamp), 10),
		"elapsed":         strconv.FormatUint(uint64(obs.Elapsed), 10),
		"price0_average":  obs.Price0Average,
		"price1_average":  obs.Price1Average,
		"price0":          obs.Price0Decimal,
		"price1":          obs.Price1Decimal,
		"observed_at":     obs.ObservedAt,
	}
	if err := pc.rdb.HSet(ctx, averageKey(obs.ChainID, obs.Pair), fields).Err(); err != nil {
		return fmt.Errorf("redis: set averages %s: %w", obs.Pair, err)
	}
	return nil
}

// Latest returns the cached observation for a pair.
func (pc *PriceCache) Latest(ctx context.Context, chainID uint64, pair string) (model.Observation, error) {
	vals, err := pc.rdb.HGetAll(ctx, averageKey(chainID, pair)).Result()
	if err != nil {
		return model.Observation{}, fmt.Errorf("redis: get averages %s: %w", pair, err)
	}
	if len(vals) == 0 {
		return model.Observation{}, ErrNotFound
	}

	ts, err := strconv.ParseUint(vals["block_timestamp"], 10, 32)
	if err != nil {
		return model.Observation{}, fmt.Errorf("redis: parse block_timestamp %s: %w", pair, err)
	}
	elapsed, err := strconv.ParseUint(vals["elapsed"], 10, 32)
	if err != nil {
		return model.Observation{}, fmt.Errorf("redis: parse elapsed %s: %w", pair, err)
	}

	return model.Observation{
		ChainID:        chainID,
		Pair:           pair,
		BlockTimestamp: uint32(ts),
		Elapsed:        uint32(elapsed),
		Price0Average:  vals["price0_average"],
		Price1Average:  vals["price1_average"],
		Price0Decimal:  vals["price0"],
		Price1Decimal:  vals["price1"],
		ObservedAt:     vals["observed_at"],
	}, nil
}
