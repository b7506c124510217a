package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"twapOracle/internal/fixedpoint"
	"twapOracle/internal/model"
)

// Pair is a read-only view of a constant product pair.
type Pair interface {
	Address() common.Address
	Tokens(ctx context.Context) (common.Address, common.Address, error)
	Snapshot(ctx context.Context) (model.PairSnapshot, error)
}

// Clock reports the current time in seconds.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func(ctx context.Context) (uint64, error)

func (f ClockFunc) Now(ctx context.Context) (uint64, error) {
	return f(ctx)
}

// SystemClock reads the local wall clock.
var SystemClock Clock = ClockFunc(func(context.Context) (uint64, error) {
	return uint64(time.Now().Unix()), nil
})

// CurrentCumulativePrices returns the pair's cumulative prices as of now,
// extrapolating from the last synchronization when the pair has not been
// touched in the current second. The pair is never written to.
func CurrentCumulativePrices(ctx context.Context, pair Pair, clock Clock) (*uint256.Int, *uint256.Int, uint32, error) {
	// snapshot first: now must not precede the snapshot's sync time
	snap, err := pair.Snapshot(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read pair snapshot: %w", err)
	}
	now, err := clock.Now(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read clock: %w", err)
	}
	// a lagging clock never reads earlier than the block the snapshot came from
	if snap.BlockTime > now {
		now = snap.BlockTime
	}
	timestamp := uint32(now)
	if precedes(timestamp, snap.BlockTimestampLast) {
		return nil, nil, 0, fmt.Errorf("%w: now %d, last sync %d", ErrClockBehind, timestamp, snap.BlockTimestampLast)
	}
	price0, price1, err := Extrapolate(snap, timestamp)
	if err != nil {
		return nil, nil, 0, err
	}
	return price0, price1, timestamp, nil
}

// precedes reports whether a is earlier than b on the wrapping 32-bit
// timeline: a forward distance from b of half the range or more.
func precedes(a, b uint32) bool {
	return a-b >= 1<<31
}

// Extrapolate advances the snapshot's cumulative prices to timestamp, holding
// the spot price constant since the last sync. Timestamps and accumulators
// wrap.
func Extrapolate(snap model.PairSnapshot, timestamp uint32) (*uint256.Int, *uint256.Int, error) {
	price0 := cloneOrZero(snap.Price0CumulativeLast)
	price1 := cloneOrZero(snap.Price1CumulativeLast)
	if snap.BlockTimestampLast == timestamp {
		return price0, price1, nil
	}

	elapsed := uint256.NewInt(uint64(timestamp - snap.BlockTimestampLast))

	spot0, err := fixedpoint.Fraction(cloneOrZero(snap.Reserve1), cloneOrZero(snap.Reserve0))
	if err != nil {
		return nil, nil, fmt.Errorf("price0: %w", err)
	}
	spot1, err := fixedpoint.Fraction(cloneOrZero(snap.Reserve0), cloneOrZero(snap.Reserve1))
	if err != nil {
		return nil, nil, fmt.Errorf("price1: %w", err)
	}

	price0.Add(price0, new(uint256.Int).Mul(spot0.Raw(), elapsed))
	price1.Add(price1, new(uint256.Int).Mul(spot1.Raw(), elapsed))
	return price0, price1, nil
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
