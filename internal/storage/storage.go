package storage

import (
	"context"

	"twapOracle/internal/model"
)

// ObservationSink receives observations from successful oracle updates.
type ObservationSink interface {
	PutObservations(ctx context.Context, observations []model.Observation) error
}

// StateStore persists oracle state keyed by pair address.
type StateStore interface {
	Load(ctx context.Context, pair string) (model.OracleState, bool, error)
	Save(ctx context.Context, state model.OracleState) error
}

// Sinks fans observations out to every sink in order.
type Sinks []ObservationSink

func (s Sinks) PutObservations(ctx context.Context, observations []model.Observation) error {
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.PutObservations(ctx, observations); err != nil {
			return err
		}
	}
	return nil
}
