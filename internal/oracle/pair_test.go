package oracle

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"twapOracle/internal/fixedpoint"
	"twapOracle/internal/model"
)

var (
	testPairAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken0   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// fakePair mimics a V2 pair's accounting: sync accumulates the spot price
// held since the previous sync, then records new reserves.
type fakePair struct {
	mu    sync.Mutex
	snap  model.PairSnapshot
	reads int
}

func newFakePair(reserve0, reserve1 uint64, ts uint32) *fakePair {
	return &fakePair{snap: model.PairSnapshot{
		Reserve0:             uint256.NewInt(reserve0),
		Reserve1:             uint256.NewInt(reserve1),
		BlockTimestampLast:   ts,
		Price0CumulativeLast: new(uint256.Int),
		Price1CumulativeLast: new(uint256.Int),
	}}
}

func (p *fakePair) Address() common.Address { return testPairAddr }

func (p *fakePair) Tokens(context.Context) (common.Address, common.Address, error) {
	return testToken0, testToken1, nil
}

func (p *fakePair) Snapshot(context.Context) (model.PairSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	return model.PairSnapshot{
		Reserve0:             new(uint256.Int).Set(p.snap.Reserve0),
		Reserve1:             new(uint256.Int).Set(p.snap.Reserve1),
		BlockTimestampLast:   p.snap.BlockTimestampLast,
		Price0CumulativeLast: new(uint256.Int).Set(p.snap.Price0CumulativeLast),
		Price1CumulativeLast: new(uint256.Int).Set(p.snap.Price1CumulativeLast),
		BlockTime:            p.snap.BlockTime,
	}, nil
}

func (p *fakePair) sync(ts uint32, reserve0, reserve1 uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := ts - p.snap.BlockTimestampLast
	if elapsed > 0 && !p.snap.Reserve0.IsZero() && !p.snap.Reserve1.IsZero() {
		spot0, _ := fixedpoint.Fraction(p.snap.Reserve1, p.snap.Reserve0)
		spot1, _ := fixedpoint.Fraction(p.snap.Reserve0, p.snap.Reserve1)
		e := uint256.NewInt(uint64(elapsed))
		p.snap.Price0CumulativeLast.Add(p.snap.Price0CumulativeLast, new(uint256.Int).Mul(spot0.Raw(), e))
		p.snap.Price1CumulativeLast.Add(p.snap.Price1CumulativeLast, new(uint256.Int).Mul(spot1.Raw(), e))
	}
	p.snap.Reserve0 = uint256.NewInt(reserve0)
	p.snap.Reserve1 = uint256.NewInt(reserve1)
	p.snap.BlockTimestampLast = ts
}

type fakeClock struct {
	mu  sync.Mutex
	now uint64
}

func (c *fakeClock) Now(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

func (c *fakeClock) set(now uint64) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *fakeClock) advance(d uint64) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}
