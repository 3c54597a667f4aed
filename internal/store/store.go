package store

import (
	"context"

	"econharvest/internal/model"
)

type Store interface {
	UpsertObservations(ctx context.Context, runID string, observations []model.Observation) error
	ListObservations(ctx context.Context, provider, dataset string) ([]model.Observation, error)
	Close() error
}

type NopStore struct{}

func (s *NopStore) UpsertObservations(ctx context.Context, runID string, observations []model.Observation) error {
	_ = ctx
	_ = runID
	_ = observations
	return nil
}

func (s *NopStore) ListObservations(ctx context.Context, provider, dataset string) ([]model.Observation, error) {
	_ = ctx
	_ = provider
	_ = dataset
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}
