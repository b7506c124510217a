package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"twapOracle/internal/model"
)

// Store provides Postgres persistence for oracle state and observations.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPairs inserts or updates tracked pair records.
func (s *Store) UpsertPairs(ctx context.Context, pairs []model.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pair := range pairs {
		batch.Queue(`
			INSERT INTO pairs (chain_id, pair_address, token0, token1, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (chain_id, pair_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				updated_at = now()
		`,
			int64(pair.ChainID),
			strings.ToLower(pair.Address),
			pair.Token0,
			pair.Token1,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pairs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutObservations inserts observations from successful updates.
func (s *Store) PutObservations(ctx context.Context, observations []model.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, obs := range observations {
		observedAt, err := time.Parse(time.RFC3339Nano, obs.ObservedAt)
		if err != nil {
			observedAt = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO oracle_observations (
				chain_id, pair_address, block_timestamp, elapsed,
				price0_average, price1_average, price0_decimal, price1_decimal, observed_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			int64(obs.ChainID),
			strings.ToLower(obs.Pair),
			int64(obs.BlockTimestamp),
			int64(obs.Elapsed),
			obs.Price0Average,
			obs.Price1Average,
			obs.Price0Decimal,
			obs.Price1Decimal,
			observedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range observations {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadOracleState returns the persisted state of a pair.
func (s *Store) LoadOracleState(ctx context.Context, chainID uint64, pair string) (model.OracleState, bool, error) {
	if pair == "" {
		return model.OracleState{}, false, fmt.Errorf("pair address required")
	}
	var (
		state     model.OracleState
		tsLast    int64
		updatedAt time.Time
	)
	row := s.pool.QueryRow(ctx, `
		SELECT pair_address, token0, token1, price0_cumulative_last::text, price1_cumulative_last::text,
			block_timestamp_last, price0_average::text, price1_average::text, updated_at
		FROM oracle_state WHERE chain_id=$1 AND pair_address=$2
	`, int64(chainID), strings.ToLower(pair))
	if err := row.Scan(
		&state.Pair,
		&state.Token0,
		&state.Token1,
		&state.Price0CumulativeLast,
		&state.Price1CumulativeLast,
		&tsLast,
		&state.Price0Average,
		&state.Price1Average,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OracleState{}, false, nil
		}
		return model.OracleState{}, false, err
	}
	state.ChainID = chainID
	state.BlockTimestampLast = uint32(tsLast)
	state.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return state, true, nil
}

// SaveOracleState upserts the state of a pair. Cumulative values and averages
// are stored as NUMERIC text to keep all 256 bits.
func (s *Store) SaveOracleState(ctx context.Context, state model.OracleState) error {
	if state.Pair == "" {
		return fmt.Errorf("pair address required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oracle_state (
			chain_id, pair_address, token0, token1, price0_cumulative_last, price1_cumulative_last,
			block_timestamp_last, price0_average, price1_average, updated_at
		) VALUES ($1,$2,$3,$4,$5::text::numeric,$6::text::numeric,$7,$8::text::numeric,$9::text::numeric,now())
		ON CONFLICT (chain_id, pair_address) DO UPDATE SET
			token0 = EXCLUDED.token0,
			token1 = EXCLUDED.token1,
			price0_cumulative_last = EXCLUDED.price0_cumulative_last,
			price1_cumulative_last = EXCLUDED.price1_cumulative_last,
			block_timestamp_last = EXCLUDED.block_timestamp_last,
			price0_average = EXCLUDED.price0_average,
			price1_average = EXCLUDED.price1_average,
			updated_at = now()
	`,
		int64(state.ChainID),
		strings.ToLower(state.Pair),
		state.Token0,
		state.Token1,
		state.Price0CumulativeLast,
		state.Price1CumulativeLast,
		int64(state.BlockTimestampLast),
		state.Price0Average,
		state.Price1Average,
	)
	return err
}

// StateStore adapts Store to storage.StateStore for one chain.
type StateStore struct {
	Store   *Store
	ChainID uint64
}

func (s *StateStore) Load(ctx context.Context, pair string) (model.OracleState, bool, error) {
	if s == nil || s.Store == nil {
		return model.OracleState{}, false, nil
	}
	return s.Store.LoadOracleState(ctx, s.ChainID, pair)
}

func (s *StateStore) Save(ctx context.Context, state model.OracleState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	if state.ChainID == 0 {
		state.ChainID = s.ChainID
	}
	return s.Store.SaveOracleState(ctx, state)
}
