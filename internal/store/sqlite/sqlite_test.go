package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econharvest/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}

func TestUpsertAndList(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()

	stamped := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	observations := []model.Observation{
		{
			Provider: "BLS", Dataset: "CPI", SeriesID: "CUUR0000SA0",
			Period: "2024-02", Value: decimal.RequireFromString("310.326"),
		},
		{
			Provider: "BLS", Dataset: "CPI", SeriesID: "CUUR0000SA0",
			Period: "2024-01", Value: decimal.RequireFromString("308.417"),
			IngestedAt: stamped,
		},
	}
	require.NoError(t, st.UpsertObservations(ctx, "run-1", observations))

	got, err := st.ListObservations(ctx, "BLS", "CPI")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "2024-01", got[0].Period)
	assert.Equal(t, "2024-02", got[1].Period)
	assert.Equal(t, "BLS", got[0].Provider)
	assert.Equal(t, "CPI", got[0].Dataset)
	assert.Equal(t, "CUUR0000SA0", got[0].SeriesID)
	assert.True(t, got[0].Value.Equal(decimal.RequireFromString("308.417")))
	assert.True(t, got[0].IngestedAt.Equal(stamped))
	assert.False(t, got[1].IngestedAt.IsZero(), "zero ingested_at should be stamped on write")
}

func TestUpsertUpdatesExistingRows(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()

	first := []model.Observation{{
		Provider: "FRED", Dataset: "GDP", SeriesID: "GDP",
		Period: "2024-01-01", Value: decimal.RequireFromString("28000.1"),
	}}
	require.NoError(t, st.UpsertObservations(ctx, "run-1", first))

	second := []model.Observation{{
		Provider: "FRED", Dataset: "GDP", SeriesID: "GDP",
		Period: "2024-01-01", Value: decimal.RequireFromString("28123.4"),
	}}
	require.NoError(t, st.UpsertObservations(ctx, "run-2", second))

	got, err := st.ListObservations(ctx, "FRED", "GDP")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Value.Equal(decimal.RequireFromString("28123.4")))
}

func TestListFiltersByProviderAndDataset(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	ctx := context.Background()

	observations := []model.Observation{
		{Provider: "BLS", Dataset: "CPI", SeriesID: "CUUR0000SA0", Period: "2024-01", Value: decimal.NewFromInt(1)},
		{Provider: "BLS", Dataset: "PPI", SeriesID: "WPUFD4", Period: "2024-01", Value: decimal.NewFromInt(2)},
		{Provider: "FRED", Dataset: "PCE", SeriesID: "PCE", Period: "2024-01-01", Value: decimal.NewFromInt(3)},
	}
	require.NoError(t, st.UpsertObservations(ctx, "run-1", observations))

	got, err := st.ListObservations(ctx, "BLS", "PPI")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "WPUFD4", got[0].SeriesID)

	got, err = st.ListObservations(ctx, "BLS", "CES")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	t.Parallel()

	st := openTestStore(t)
	require.NoError(t, st.UpsertObservations(context.Background(), "run-1", nil))
}

func TestReopenKeepsRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.db")
	st, err := New(path)
	require.NoError(t, err)

	observations := []model.Observation{{
		Provider: "BLS", Dataset: "CES", SeriesID: "CES0000000001",
		Period: "2023-12", Value: decimal.RequireFromString("157232"),
	}}
	require.NoError(t, st.UpsertObservations(context.Background(), "run-1", observations))
	require.NoError(t, st.Close())

	st, err = New(path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	got, err := st.ListObservations(context.Background(), "BLS", "CES")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2023-12", got[0].Period)
}
