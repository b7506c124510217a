// Package oracle computes fixed-window time-weighted average prices for a
// constant product pair from its cumulative price accumulators.
package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"twapOracle/internal/fixedpoint"
)

// DefaultPeriod is the minimum averaging window in seconds.
const DefaultPeriod uint32 = 24 * 60 * 60

// Config controls oracle behavior.
type Config struct {
	// Period is the minimum number of seconds between successful updates.
	Period uint32
}

func (c Config) period() uint32 {
	if c.Period == 0 {
		return DefaultPeriod
	}
	return c.Period
}

// Result describes a successful update.
type Result struct {
	Timestamp     uint32
	Elapsed       uint32
	Price0Average fixedpoint.UQ112x112
	Price1Average fixedpoint.UQ112x112
}

// Oracle tracks the average price of one pair over windows of at least one
// period. It is safe for concurrent use.
type Oracle struct {
	pair   Pair
	clock  Clock
	period uint32
	token0 common.Address
	token1 common.Address

	// updateMu serializes Update; mu guards the fields below it.
	updateMu sync.Mutex
	mu       sync.RWMutex

	price0CumulativeLast uint256.Int
	price1CumulativeLast uint256.Int
	blockTimestampLast   uint32
	price0Average        fixedpoint.UQ112x112
	price1Average        fixedpoint.UQ112x112
	ready                bool
}

// New snapshots the pair's current accumulators. The pair must hold
// liquidity.
func New(ctx context.Context, pair Pair, clock Clock, cfg Config) (*Oracle, error) {
	if pair == nil {
		return nil, fmt.Errorf("pair is nil")
	}
	if clock == nil {
		clock = SystemClock
	}
	token0, token1, err := pair.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pair tokens: %w", err)
	}
	snap, err := pair.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pair snapshot: %w", err)
	}
	if !snap.HasLiquidity() {
		return nil, fmt.Errorf("%w: pair %s", ErrNoLiquidity, pair.Address().Hex())
	}

	o := &Oracle{
		pair:               pair,
		clock:              clock,
		period:             cfg.period(),
		token0:             token0,
		token1:             token1,
		blockTimestampLast: snap.BlockTimestampLast,
	}
	o.price0CumulativeLast.Set(cloneOrZero(snap.Price0CumulativeLast))
	o.price1CumulativeLast.Set(cloneOrZero(snap.Price1CumulativeLast))
	return o, nil
}

// Pair returns the pair address.
func (o *Oracle) Pair() common.Address {
	return o.pair.Address()
}

// Tokens returns the pair's token0 and token1.
func (o *Oracle) Tokens() (common.Address, common.Address) {
	return o.token0, o.token1
}

// Period returns the minimum averaging window in seconds.
func (o *Oracle) Period() uint32 {
	return o.period
}

// Update recomputes both averages over the time since the previous snapshot
// and rolls the snapshot forward. It fails with ErrPeriodNotElapsed, leaving
// the oracle untouched, if that time is shorter than one period.
func (o *Oracle) Update(ctx context.Context) (Result, error) {
	o.updateMu.Lock()
	defer o.updateMu.Unlock()

	price0Cumulative, price1Cumulative, timestamp, err := CurrentCumulativePrices(ctx, o.pair, o.clock)
	if err != nil {
		return Result{}, err
	}

	o.mu.RLock()
	last0 := o.price0CumulativeLast
	last1 := o.price1CumulativeLast
	lastTimestamp := o.blockTimestampLast
	o.mu.RUnlock()

	if precedes(timestamp, lastTimestamp) {
		return Result{}, fmt.Errorf("%w: now %d, last update %d", ErrClockBehind, timestamp, lastTimestamp)
	}
	elapsed := timestamp - lastTimestamp

	if elapsed < o.period {
		return Result{}, fmt.Errorf("%w: %ds of %ds", ErrPeriodNotElapsed, elapsed, o.period)
	}

	avg0, err := average(price0Cumulative, &last0, elapsed)
	if err != nil {
		return Result{}, fmt.Errorf("price0 average: %w", err)
	}
	avg1, err := average(price1Cumulative, &last1, elapsed)
	if err != nil {
		return Result{}, fmt.Errorf("price1 average: %w", err)
	}

	o.mu.Lock()
	o.price0Average = avg0
	o.price1Average = avg1
	o.price0CumulativeLast.Set(price0Cumulative)
	o.price1CumulativeLast.Set(price1Cumulative)
	o.blockTimestampLast = timestamp
	o.ready = true
	o.mu.Unlock()

	return Result{
		Timestamp:     timestamp,
		Elapsed:       elapsed,
		Price0Average: avg0,
		Price1Average: avg1,
	}, nil
}

// average returns (current - last) / elapsed truncated to the fixed point
// width. The subtraction wraps with the accumulators.
func average(current, last *uint256.Int, elapsed uint32) (fixedpoint.UQ112x112, error) {
	if elapsed == 0 {
		return fixedpoint.UQ112x112{}, ErrDivisionByZero
	}
	delta := new(uint256.Int).Sub(current, last)
	delta.Div(delta, uint256.NewInt(uint64(elapsed)))
	return fixedpoint.FromRaw(delta), nil
}

// Consult converts amountIn of token into the other token at the last
// computed average. It returns 0 until the first successful Update.
func (o *Oracle) Consult(token common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if amountIn == nil {
		amountIn = new(uint256.Int)
	}

	o.mu.RLock()
	var avg fixedpoint.UQ112x112
	switch token {
	case o.token0:
		avg = o.price0Average
	case o.token1:
		avg = o.price1Average
	default:
		o.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, token.Hex())
	}
	o.mu.RUnlock()

	return avg.Mul(amountIn).Decode144()
}

// Averages returns the current price0 and price1 averages.
func (o *Oracle) Averages() (fixedpoint.UQ112x112, fixedpoint.UQ112x112) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.price0Average, o.price1Average
}

// Ready reports whether at least one update has succeeded.
func (o *Oracle) Ready() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ready
}

// NextUpdateAt returns the earliest 32-bit timestamp at which Update can
// succeed.
func (o *Oracle) NextUpdateAt() uint32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.blockTimestampLast + o.period
}
