package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"twapOracle/internal/model"
	"twapOracle/internal/oracle"
	"twapOracle/internal/storage"
)

// RunConfig holds runtime settings for the watcher.
type RunConfig struct {
	ChainID      uint64
	Pairs        []common.Address
	Period       uint32
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// Once runs a single update attempt per pair and returns.
	Once bool
}

// PairFactory opens a read-only view of the pair at addr.
type PairFactory func(addr common.Address) (oracle.Pair, error)

// TokenMetaFunc resolves token metadata; failures yield a zero Decimals.
type TokenMetaFunc func(ctx context.Context, token common.Address) model.TokenMeta

// Publisher receives the latest observation of each pair.
type Publisher interface {
	Publish(ctx context.Context, obs model.Observation) error
}

// PairRegistry records the pairs being tracked.
type PairRegistry interface {
	UpsertPairs(ctx context.Context, pairs []model.Pair) error
}

// Deps bundles the watcher's collaborators. Only Pairs is required.
type Deps struct {
	Pairs     PairFactory
	Clock     oracle.Clock
	States    storage.StateStore
	Sink      storage.ObservationSink
	Publisher Publisher
	Registry  PairRegistry
	TokenMeta TokenMetaFunc
}

// Runner keeps one oracle per pair up to date.
type Runner struct {
	cfg    RunConfig
	deps   Deps
	logger *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps Deps, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = oracle.SystemClock
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}
}

type trackedPair struct {
	oracle    *oracle.Oracle
	decimals0 uint8
	decimals1 uint8
}

// Run opens every pair and updates them until ctx is done, or once when
// configured so.
func (r *Runner) Run(ctx context.Context) error {
	if r.deps.Pairs == nil {
		return fmt.Errorf("pair factory is nil")
	}
	if len(r.cfg.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	if !r.cfg.Once && r.cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	tracked := make([]*trackedPair, 0, len(r.cfg.Pairs))
	records := make([]model.Pair, 0, len(r.cfg.Pairs))
	for _, addr := range r.cfg.Pairs {
		tp, err := r.open(ctx, addr)
		if err != nil {
			if errors.Is(err, oracle.ErrNoLiquidity) {
				r.logger.Warn("skip pair without liquidity", zap.String("pair", addr.Hex()))
				continue
			}
			return fmt.Errorf("open pair %s: %w", addr.Hex(), err)
		}
		tracked = append(tracked, tp)
		token0, token1 := tp.oracle.Tokens()
		records = append(records, model.Pair{
			ChainID: r.cfg.ChainID,
			Address: addr.Hex(),
			Token0:  token0.Hex(),
			Token1:  token1.Hex(),
		})
	}
	if len(tracked) == 0 {
		return fmt.Errorf("no pair could be opened")
	}

	if r.deps.Registry != nil {
		if err := r.deps.Registry.UpsertPairs(ctx, records); err != nil {
			return fmt.Errorf("register pairs: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, tp := range tracked {
		tp := tp
		g.Go(func() error {
			return r.watch(ctx, tp)
		})
	}
	return g.Wait()
}

func (r *Runner) open(ctx context.Context, addr common.Address) (*trackedPair, error) {
	pair, err := r.deps.Pairs(addr)
	if err != nil {
		return nil, err
	}
	cfg := oracle.Config{Period: r.cfg.Period}

	var o *oracle.Oracle
	if r.deps.States != nil {
		state, ok, err := r.deps.States.Load(ctx, addr.Hex())
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		if ok && state.ChainID != 0 && state.ChainID != r.cfg.ChainID {
			return nil, fmt.Errorf("stored state of pair %s belongs to chain %d, watching chain %d", addr.Hex(), state.ChainID, r.cfg.ChainID)
		}
		if ok {
			o, err = oracle.Restore(pair, r.deps.Clock, state, cfg)
			if err != nil {
				return nil, fmt.Errorf("restore state: %w", err)
			}
			r.logger.Info("oracle restored",
				zap.String("pair", addr.Hex()),
				zap.Uint32("block_timestamp_last", state.BlockTimestampLast),
				zap.Bool("ready", o.Ready()),
			)
		}
	}

	if o == nil {
		err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			o, err = oracle.New(ctx, pair, r.deps.Clock, cfg)
			if err != nil && retryable(err) {
				r.logger.Warn("oracle construction failed", zap.Error(err), zap.String("pair", addr.Hex()))
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		if err := r.saveState(ctx, o); err != nil {
			return nil, err
		}
		r.logger.Info("oracle created", zap.String("pair", addr.Hex()), zap.Uint32("next_update_at", o.NextUpdateAt()))
	}

	tp := &trackedPair{oracle: o}
	if r.deps.TokenMeta != nil {
		token0, token1 := o.Tokens()
		meta0 := r.deps.TokenMeta(ctx, token0)
		meta1 := r.deps.TokenMeta(ctx, token1)
		tp.decimals0 = meta0.Decimals
		tp.decimals1 = meta1.Decimals
		r.logger.Debug("pair tokens",
			zap.String("pair", addr.Hex()),
			zap.String("token0", meta0.Symbol),
			zap.Uint8("decimals0", meta0.Decimals),
			zap.String("token1", meta1.Symbol),
			zap.Uint8("decimals1", meta1.Decimals),
		)
	}
	return tp, nil
}

func (r *Runner) watch(ctx context.Context, tp *trackedPair) error {
	if err := r.tick(ctx, tp); err != nil || r.cfg.Once {
		return err
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.tick(ctx, tp); err != nil {
				return err
			}
		}
	}
}

// tick attempts one update. Only invariant violations and persistence
// failures stop the watcher; RPC failures wait for the next tick.
func (r *Runner) tick(ctx context.Context, tp *trackedPair) error {
	o := tp.oracle
	pairHex := o.Pair().Hex()

	var res oracle.Result
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		res, err = o.Update(ctx)
		if err != nil && retryable(err) {
			r.logger.Warn("update failed", zap.Error(err), zap.String("pair", pairHex))
		}
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, oracle.ErrPeriodNotElapsed):
		r.logger.Debug("period not elapsed", zap.String("pair", pairHex), zap.Uint32("next_update_at", o.NextUpdateAt()))
		return nil
	case errors.Is(err, oracle.ErrOverflow), errors.Is(err, oracle.ErrDivisionByZero):
		return fmt.Errorf("update %s: %w", pairHex, err)
	case ctx.Err() != nil:
		return nil
	default:
		r.logger.Error("update gave up", zap.Error(err), zap.String("pair", pairHex))
		return nil
	}

	if err := r.saveState(ctx, o); err != nil {
		return err
	}

	obs := model.Observation{
		ChainID:        r.cfg.ChainID,
		Pair:           pairHex,
		BlockTimestamp: res.Timestamp,
		Elapsed:        res.Elapsed,
		Price0Average:  res.Price0Average.Raw().ToBig().String(),
		Price1Average:  res.Price1Average.Raw().ToBig().String(),
		Price0Decimal:  scaledPrice(res.Price0Average, tp.decimals0, tp.decimals1),
		Price1Decimal:  scaledPrice(res.Price1Average, tp.decimals1, tp.decimals0),
		ObservedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	if r.deps.Sink != nil {
		if err := r.deps.Sink.PutObservations(ctx, []model.Observation{obs}); err != nil {
			return fmt.Errorf("store observation: %w", err)
		}
	}
	if r.deps.Publisher != nil {
		if err := r.deps.Publisher.Publish(ctx, obs); err != nil {
			r.logger.Warn("publish averages failed", zap.Error(err), zap.String("pair", pairHex))
		}
	}

	r.logger.Info("oracle updated",
		zap.String("pair", pairHex),
		zap.Uint32("timestamp", res.Timestamp),
		zap.Uint32("elapsed", res.Elapsed),
		zap.String("price0", obs.Price0Decimal),
		zap.String("price1", obs.Price1Decimal),
	)
	return nil
}

func (r *Runner) saveState(ctx context.Context, o *oracle.Oracle) error {
	if r.deps.States == nil {
		return nil
	}
	state := o.State()
	state.ChainID = r.cfg.ChainID
	if err := r.deps.States.Save(ctx, state); err != nil {
		return fmt.Errorf("save state %s: %w", state.Pair, err)
	}
	return nil
}
