package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"econharvest/internal/model"
	"econharvest/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return st, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertObservations(ctx context.Context, runID string, observations []model.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (
			provider, dataset, series_id, period, value, run_id, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, dataset, series_id, period)
		DO UPDATE SET
			value = excluded.value,
			run_id = excluded.run_id,
			ingested_at = excluded.ingested_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range observations {
		observation := observations[i]
		if observation.IngestedAt.IsZero() {
			observation.IngestedAt = now
		}
		_, err = stmt.ExecContext(
			ctx,
			observation.Provider,
			observation.Dataset,
			observation.SeriesID,
			observation.Period,
			observation.Value.String(),
			runID,
			observation.IngestedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) ListObservations(ctx context.Context, provider, dataset string) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, dataset, series_id, period, value, ingested_at
		FROM observations
		WHERE provider = ? AND dataset = ?
		ORDER BY series_id, period
	`, provider, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []model.Observation
	for rows.Next() {
		var observation model.Observation
		var value, ingestedAt string
		if err := rows.Scan(
			&observation.Provider,
			&observation.Dataset,
			&observation.SeriesID,
			&observation.Period,
			&value,
			&ingestedAt,
		); err != nil {
			return nil, err
		}
		observation.Value, err = decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("sqlite: bad stored value for %s/%s period %s: %w",
				observation.Provider, observation.Dataset, observation.Period, err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ingestedAt); err == nil {
			observation.IngestedAt = parsed
		}
		observations = append(observations, observation)
	}
	return observations, rows.Err()
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS observations (
			provider TEXT NOT NULL,
			dataset TEXT NOT NULL,
			series_id TEXT NOT NULL DEFAULT '',
			period TEXT NOT NULL,
			value TEXT NOT NULL,
			run_id TEXT NOT NULL,
			ingested_at TEXT NOT NULL,
			PRIMARY KEY (provider, dataset, series_id, period)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
