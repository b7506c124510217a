package oracle

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"twapOracle/internal/fixedpoint"
	"twapOracle/internal/model"
)

const testPeriod = uint32(24 * 60 * 60)

func newTestOracle(t *testing.T, pair *fakePair, clock *fakeClock) *Oracle {
	t.Helper()
	o, err := New(context.Background(), pair, clock, Config{Period: testPeriod})
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	return o
}

func mustFraction(t *testing.T, num, den uint64) fixedpoint.UQ112x112 {
	t.Helper()
	f, err := fixedpoint.Fraction(uint256.NewInt(num), uint256.NewInt(den))
	if err != nil {
		t.Fatalf("fraction: %v", err)
	}
	return f
}

func stateWithoutTime(o *Oracle) model.OracleState {
	s := o.State()
	s.UpdatedAt = ""
	return s
}

func TestNewNoLiquidity(t *testing.T) {
	pair := newFakePair(0, 2000, 100)
	_, err := New(context.Background(), pair, &fakeClock{now: 100}, Config{})
	if !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("expected ErrNoLiquidity, got %v", err)
	}

	pair = newFakePair(1000, 0, 100)
	_, err = New(context.Background(), pair, &fakeClock{now: 100}, Config{})
	if !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("expected ErrNoLiquidity, got %v", err)
	}
}

func TestNewDefaultPeriod(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	o, err := New(context.Background(), pair, &fakeClock{now: 100}, Config{})
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	if o.Period() != DefaultPeriod {
		t.Fatalf("period mismatch: %d", o.Period())
	}
	token0, token1 := o.Tokens()
	if token0 != testToken0 || token1 != testToken1 {
		t.Fatalf("tokens mismatch")
	}
}

func TestConsultBeforeUpdate(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	o := newTestOracle(t, pair, &fakeClock{now: 100})

	for _, token := range []common.Address{testToken0, testToken1} {
		out, err := o.Consult(token, uint256.NewInt(500))
		if err != nil {
			t.Fatalf("consult: %v", err)
		}
		if !out.IsZero() {
			t.Fatalf("expected 0 before update, got %s", out)
		}
	}
	if o.Ready() {
		t.Fatalf("oracle should not be ready before update")
	}
}

func TestUpdateBeforePeriod(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)
	before := stateWithoutTime(o)

	clock.advance(uint64(testPeriod) - 1)
	_, err := o.Update(context.Background())
	if !errors.Is(err, ErrPeriodNotElapsed) {
		t.Fatalf("expected ErrPeriodNotElapsed, got %v", err)
	}
	if after := stateWithoutTime(o); after != before {
		t.Fatalf("state changed on failed update: %+v != %+v", after, before)
	}
	if o.NextUpdateAt() != 100+testPeriod {
		t.Fatalf("next update mismatch: %d", o.NextUpdateAt())
	}
}

func TestUpdateConstantReserves(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)

	want0 := mustFraction(t, 2000, 1000)
	want1 := mustFraction(t, 1000, 2000)

	for i := 0; i < 2; i++ {
		clock.advance(uint64(testPeriod))
		res, err := o.Update(context.Background())
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if res.Elapsed != testPeriod {
			t.Fatalf("elapsed mismatch: %d", res.Elapsed)
		}
		avg0, avg1 := o.Averages()
		if !avg0.Equal(want0) || !avg1.Equal(want1) {
			t.Fatalf("averages mismatch after update %d: %s, %s", i, avg0, avg1)
		}
		out, err := o.Consult(testToken0, uint256.NewInt(500))
		if err != nil {
			t.Fatalf("consult: %v", err)
		}
		if out.Uint64() != 1000 {
			t.Fatalf("expected 1000, got %s", out)
		}
		out, err = o.Consult(testToken1, uint256.NewInt(500))
		if err != nil {
			t.Fatalf("consult: %v", err)
		}
		if out.Uint64() != 250 {
			t.Fatalf("expected 250, got %s", out)
		}
	}
	if !o.Ready() {
		t.Fatalf("oracle should be ready")
	}
	if pair.snap.BlockTimestampLast != 100 {
		t.Fatalf("update must not sync the pair")
	}
}

func TestUpdateTimeWeighted(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)

	half := testPeriod / 2
	pair.sync(100+half, 1000, 4000)
	clock.set(uint64(100 + testPeriod))

	if _, err := o.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}
	avg0, _ := o.Averages()
	if want := mustFraction(t, 3, 1); !avg0.Equal(want) {
		t.Fatalf("expected 3.0, got %s", avg0)
	}
}

func TestUpdateSpansAtLeastOnePeriod(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)

	clock.advance(uint64(testPeriod) + uint64(testPeriod)/2)
	res, err := o.Update(context.Background())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Elapsed < testPeriod {
		t.Fatalf("elapsed %d shorter than period", res.Elapsed)
	}

	clock.advance(1)
	if _, err := o.Update(context.Background()); !errors.Is(err, ErrPeriodNotElapsed) {
		t.Fatalf("expected ErrPeriodNotElapsed right after update, got %v", err)
	}
}

func TestUpdateTimestampWrap(t *testing.T) {
	start := uint32(math.MaxUint32 - 99)
	pair := newFakePair(1000, 2000, start)
	clock := &fakeClock{now: uint64(start)}
	o := newTestOracle(t, pair, clock)

	clock.advance(uint64(testPeriod))
	res, err := o.Update(context.Background())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Elapsed != testPeriod {
		t.Fatalf("elapsed should be the forward difference, got %d", res.Elapsed)
	}
	if res.Timestamp != testPeriod-100 {
		t.Fatalf("timestamp mismatch: %d", res.Timestamp)
	}
	avg0, _ := o.Averages()
	if !avg0.Equal(mustFraction(t, 2000, 1000)) {
		t.Fatalf("average mismatch: %s", avg0)
	}
}

func TestUpdateAccumulatorWrap(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	near := new(uint256.Int).SetAllOne()
	near.Sub(near, uint256.NewInt(5))
	pair.snap.Price0CumulativeLast = near
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)

	clock.advance(uint64(testPeriod))
	if _, err := o.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}
	avg0, _ := o.Averages()
	if !avg0.Equal(mustFraction(t, 2000, 1000)) {
		t.Fatalf("average mismatch across accumulator wrap: %s", avg0)
	}
}

func TestConsultUnknownAsset(t *testing.T) {
	o := newTestOracle(t, newFakePair(1000, 2000, 100), &fakeClock{now: 100})
	_, err := o.Consult(common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"), uint256.NewInt(1))
	if !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestConsultSingleTruncation(t *testing.T) {
	pair := newFakePair(3000, 1000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)
	clock.advance(uint64(testPeriod))
	if _, err := o.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}

	avg0, _ := o.Averages()
	amount := uint256.NewInt(1_000_000_007)
	want, err := avg0.Mul(amount).Decode144()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := o.Consult(testToken0, amount)
	if err != nil {
		t.Fatalf("consult: %v", err)
	}
	if !got.Eq(want) {
		t.Fatalf("consult mismatch: %s != %s", got, want)
	}
}

func TestStateRestore(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)
	clock.advance(uint64(testPeriod))
	if _, err := o.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}

	state := o.State()
	restored, err := Restore(pair, clock, state, Config{Period: testPeriod})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := stateWithoutTime(restored); got != stateWithoutTime(o) {
		t.Fatalf("restored state mismatch: %+v", got)
	}
	if !restored.Ready() {
		t.Fatalf("restored oracle should be ready")
	}
	out, err := restored.Consult(testToken0, uint256.NewInt(500))
	if err != nil {
		t.Fatalf("consult: %v", err)
	}
	if out.Uint64() != 1000 {
		t.Fatalf("expected 1000, got %s", out)
	}

	state.Pair = common.HexToAddress("0x2222222222222222222222222222222222222222").Hex()
	if _, err := Restore(pair, clock, state, Config{}); err == nil {
		t.Fatalf("expected pair mismatch error")
	}
}

func TestConcurrentConsultDuringUpdate(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)
	clock.advance(uint64(testPeriod))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out, err := o.Consult(testToken0, uint256.NewInt(500))
				if err != nil {
					t.Errorf("consult: %v", err)
					return
				}
				if v := out.Uint64(); v != 0 && v != 1000 {
					t.Errorf("observed partial state: %d", v)
					return
				}
			}
		}()
	}

	var updates int
	var mu sync.Mutex
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Update(context.Background()); err == nil {
				mu.Lock()
				updates++
				mu.Unlock()
			} else if !errors.Is(err, ErrPeriodNotElapsed) {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	if updates != 1 {
		t.Fatalf("expected exactly one successful update, got %d", updates)
	}
}

func TestUpdateRejectsLaggingClock(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)

	pair.sync(100+testPeriod+10, 1000, 2000)
	clock.set(uint64(100 + testPeriod + 5))
	before := stateWithoutTime(o)

	_, err := o.Update(context.Background())
	if !errors.Is(err, ErrClockBehind) {
		t.Fatalf("expected ErrClockBehind, got %v", err)
	}
	if stateWithoutTime(o) != before || o.Ready() {
		t.Fatalf("state changed on lagging clock")
	}
}

func TestUpdateUsesSnapshotBlockTime(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100}
	o := newTestOracle(t, pair, clock)

	synced := 100 + testPeriod + 10
	pair.sync(synced, 1000, 2000)
	pair.snap.BlockTime = uint64(synced)
	clock.set(uint64(synced - 5))

	res, err := o.Update(context.Background())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Timestamp != synced || res.Elapsed != testPeriod+10 {
		t.Fatalf("unexpected result: ts=%d elapsed=%d", res.Timestamp, res.Elapsed)
	}
	avg0, avg1 := o.Averages()
	if !avg0.Equal(mustFraction(t, 2000, 1000)) || !avg1.Equal(mustFraction(t, 1000, 2000)) {
		t.Fatalf("average mismatch: %s %s", avg0, avg1)
	}
}

func TestUpdateRejectsClockBeforeLastUpdate(t *testing.T) {
	pair := newFakePair(1000, 2000, 100)
	clock := &fakeClock{now: 100 + uint64(testPeriod)}
	o := newTestOracle(t, pair, clock)
	if _, err := o.Update(context.Background()); err != nil {
		t.Fatalf("update: %v", err)
	}

	clock.set(50)
	pair.snap.BlockTimestampLast = 40
	if _, err := o.Update(context.Background()); !errors.Is(err, ErrClockBehind) {
		t.Fatalf("expected ErrClockBehind, got %v", err)
	}
}
