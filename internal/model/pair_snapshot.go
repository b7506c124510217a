package model

import "github.com/holiman/uint256"

// PairSnapshot is a pair's accounting as of its most recent synchronization.
// All fields are read from the same block.
type PairSnapshot struct {
	Reserve0             *uint256.Int
	Reserve1             *uint256.Int
	BlockTimestampLast   uint32
	Price0CumulativeLast *uint256.Int
	Price1CumulativeLast *uint256.Int
	// BlockTime is the timestamp of the block the snapshot was read at, or 0
	// when unknown.
	BlockTime uint64
}

// HasLiquidity reports whether both reserves are non-zero.
func (s PairSnapshot) HasLiquidity() bool {
	return s.Reserve0 != nil && s.Reserve1 != nil && !s.Reserve0.IsZero() && !s.Reserve1.IsZero()
}
