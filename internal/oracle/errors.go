package oracle

import (
	"errors"

	"twapOracle/internal/fixedpoint"
)

var (
	// ErrNoLiquidity is returned when a pair has a zero reserve at construction.
	ErrNoLiquidity = errors.New("oracle: no reserves")
	// ErrPeriodNotElapsed is returned by Update when less than one period has
	// passed since the last snapshot. Callers retry later.
	ErrPeriodNotElapsed = errors.New("oracle: period not elapsed")
	// ErrUnknownAsset is returned by Consult for a token outside the pair.
	ErrUnknownAsset = errors.New("oracle: invalid token")
	// ErrClockBehind is returned when the clock reads earlier than the pair's
	// last synchronization or the oracle's last update.
	ErrClockBehind = errors.New("oracle: clock behind last sync")

	ErrDivisionByZero = fixedpoint.ErrDivisionByZero
	ErrOverflow       = fixedpoint.ErrOverflow
)
