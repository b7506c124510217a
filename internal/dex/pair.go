package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"twapOracle/internal/model"
)

// PairReader reads a V2 pair's reserves and price accumulators over RPC.
// It never sends transactions.
type PairReader struct {
	caller  Caller
	address common.Address
	pairABI abi.ABI

	mu     sync.Mutex
	tokens *[2]common.Address
}

// NewPairReader builds a reader for the pair at address.
func NewPairReader(caller Caller, address common.Address) (*PairReader, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	return &PairReader{caller: caller, address: address, pairABI: pairABI}, nil
}

// Address returns the pair address.
func (p *PairReader) Address() common.Address {
	return p.address
}

// Tokens returns token0 and token1. They are immutable and cached after the
// first successful read.
func (p *PairReader) Tokens(ctx context.Context) (common.Address, common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tokens != nil {
		return p.tokens[0], p.tokens[1], nil
	}

	values, err := callMethod(ctx, p.caller, p.address, p.pairABI, "token0", nil)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, p.caller, p.address, p.pairABI, "token1", nil)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}

	p.tokens = &[2]common.Address{token0, token1}
	return token0, token1, nil
}

// Snapshot reads reserves and both accumulators at the latest block. All
// calls are pinned to the same block number so the values come from one
// synchronization, and BlockTime is that block's timestamp.
func (p *PairReader) Snapshot(ctx context.Context) (model.PairSnapshot, error) {
	header, err := p.caller.HeaderByNumber(ctx, nil)
	if err != nil {
		return model.PairSnapshot{}, fmt.Errorf("latest header: %w", err)
	}
	snap, err := p.SnapshotAt(ctx, header.Number)
	if err != nil {
		return model.PairSnapshot{}, err
	}
	snap.BlockTime = header.Time
	return snap, nil
}

// SnapshotAt reads the pair at a specific block.
func (p *PairReader) SnapshotAt(ctx context.Context, block *big.Int) (model.PairSnapshot, error) {
	values, err := callMethod(ctx, p.caller, p.address, p.pairABI, "getReserves", block)
	if err != nil {
		return model.PairSnapshot{}, err
	}
	if len(values) != 3 {
		return model.PairSnapshot{}, fmt.Errorf("getReserves return size %d", len(values))
	}
	reserve0, err := asUint(values[0], 112)
	if err != nil {
		return model.PairSnapshot{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asUint(values[1], 112)
	if err != nil {
		return model.PairSnapshot{}, fmt.Errorf("reserve1: %w", err)
	}
	blockTimestampLast, err := asUint32(values[2])
	if err != nil {
		return model.PairSnapshot{}, fmt.Errorf("block timestamp last: %w", err)
	}

	values, err = callMethod(ctx, p.caller, p.address, p.pairABI, "price0CumulativeLast", block)
	if err != nil {
		return model.PairSnapshot{}, err
	}
	price0, err := asUint(values[0], 256)
	if err != nil {
		return model.PairSnapshot{}, fmt.Errorf("price0 cumulative: %w", err)
	}

	values, err = callMethod(ctx, p.caller, p.address, p.pairABI, "price1CumulativeLast", block)
	if err != nil {
		return model.PairSnapshot{}, err
	}
	price1, err := asUint(values[0], 256)
	if err != nil {
		return model.PairSnapshot{}, fmt.Errorf("price1 cumulative: %w", err)
	}

	return model.PairSnapshot{
		Reserve0:             reserve0,
		Reserve1:             reserve1,
		BlockTimestampLast:   blockTimestampLast,
		Price0CumulativeLast: price0,
		Price1CumulativeLast: price1,
	}, nil
}

func asUint(value interface{}, bits int) (*uint256.Int, error) {
	v, err := asBigInt(value)
	if err != nil {
		return nil, err
	}
	if v.Sign() < 0 || v.BitLen() > bits {
		return nil, fmt.Errorf("uint%d out of range: %s", bits, v)
	}
	out, _ := uint256.FromBig(v)
	return out, nil
}
