package oracle

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"twapOracle/internal/fixedpoint"
	"twapOracle/internal/model"
)

// State returns the oracle's persistent fields. ChainID is left for the
// caller to fill in.
func (o *Oracle) State() model.OracleState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return model.OracleState{
		Pair:                 o.pair.Address().Hex(),
		Token0:               o.token0.Hex(),
		Token1:               o.token1.Hex(),
		Price0CumulativeLast: o.price0CumulativeLast.ToBig().String(),
		Price1CumulativeLast: o.price1CumulativeLast.ToBig().String(),
		BlockTimestampLast:   o.blockTimestampLast,
		Price0Average:        o.price0Average.Raw().ToBig().String(),
		Price1Average:        o.price1Average.Raw().ToBig().String(),
		UpdatedAt:            time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Restore rebuilds an oracle from a persisted state without reading the
// pair.
func Restore(pair Pair, clock Clock, state model.OracleState, cfg Config) (*Oracle, error) {
	if pair == nil {
		return nil, fmt.Errorf("pair is nil")
	}
	if clock == nil {
		clock = SystemClock
	}
	if !strings.EqualFold(state.Pair, pair.Address().Hex()) {
		return nil, fmt.Errorf("state pair %s does not match %s", state.Pair, pair.Address().Hex())
	}
	if !common.IsHexAddress(state.Token0) || !common.IsHexAddress(state.Token1) {
		return nil, fmt.Errorf("invalid state tokens: %s, %s", state.Token0, state.Token1)
	}

	cum0, err := parseUint256(state.Price0CumulativeLast)
	if err != nil {
		return nil, fmt.Errorf("price0 cumulative: %w", err)
	}
	cum1, err := parseUint256(state.Price1CumulativeLast)
	if err != nil {
		return nil, fmt.Errorf("price1 cumulative: %w", err)
	}
	avg0, err := parseUint256(state.Price0Average)
	if err != nil {
		return nil, fmt.Errorf("price0 average: %w", err)
	}
	avg1, err := parseUint256(state.Price1Average)
	if err != nil {
		return nil, fmt.Errorf("price1 average: %w", err)
	}

	o := &Oracle{
		pair:               pair,
		clock:              clock,
		period:             cfg.period(),
		token0:             common.HexToAddress(state.Token0),
		token1:             common.HexToAddress(state.Token1),
		blockTimestampLast: state.BlockTimestampLast,
		price0Average:      fixedpoint.FromRaw(avg0),
		price1Average:      fixedpoint.FromRaw(avg1),
	}
	o.price0CumulativeLast.Set(cum0)
	o.price1CumulativeLast.Set(cum1)
	o.ready = !o.price0Average.IsZero() || !o.price1Average.IsZero()
	return o, nil
}

func parseUint256(value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid uint256: %s", value)
	}
	v, overflow := uint256.FromBig(parsed)
	if overflow {
		return nil, fmt.Errorf("uint256 overflow: %s", value)
	}
	return v, nil
}
