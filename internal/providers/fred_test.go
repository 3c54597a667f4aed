package providers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econharvest/internal/model"
	"econharvest/internal/registry"
)

const fredBody = `{
  "realtime_start": "2024-06-01",
  "realtime_end": "2024-06-01",
  "observation_start": "2020-01-01",
  "observation_end": "2024-12-31",
  "units": "lin",
  "count": 2,
  "observations": [
    {"realtime_start": "2024-06-01", "realtime_end": "2024-06-01", "date": "2020-01-01", "value": "14838.7"},
    {"realtime_start": "2024-06-01", "realtime_end": "2024-06-01", "date": "2020-02-01", "value": "."}
  ]
}`

func TestFREDExtract(t *testing.T) {
	t.Parallel()

	dataset := registry.DatasetSpec{
		Name:    "PCE",
		Payload: map[string]any{"series_id": "PCE", "file_type": "json"},
	}

	rows, err := FRED{}.Extract([]byte(fredBody), dataset)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2020-01-01", rows[0]["date"])
	assert.Equal(t, "14838.7", rows[0]["value"])
	assert.Equal(t, "PCE", rows[0]["series_id"], "series ID comes from the request payload")
	assert.Equal(t, ".", rows[1]["value"], "extraction keeps the raw sentinel for the validator to reject")
}

func TestFREDExtractEmptyObservations(t *testing.T) {
	t.Parallel()

	rows, err := FRED{}.Extract([]byte(`{"count": 0, "observations": []}`), registry.DatasetSpec{Name: "GDP"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFREDExtractEnvelopeError(t *testing.T) {
	t.Parallel()

	_, err := FRED{}.Extract([]byte(`{"error_code": 400, "error_message": "Bad Request."}`), registry.DatasetSpec{Name: "GDP"})
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "observations", parseErr.Path)
}

func TestFREDNormalize(t *testing.T) {
	t.Parallel()

	dataset := registry.DatasetSpec{Name: "HOUSING"}
	raw := model.RawObservation{
		"date":      "2021-03-01",
		"value":     "1725.0",
		"series_id": "HOUST",
	}

	obs, err := FRED{}.Normalize(raw, dataset)
	require.NoError(t, err)

	assert.Equal(t, "FRED", obs.Provider)
	assert.Equal(t, "HOUSING", obs.Dataset)
	assert.Equal(t, "HOUST", obs.SeriesID)
	assert.Equal(t, "2021-03-01", obs.Period, "FRED dates pass through unchanged")
	assert.True(t, obs.Value.Equal(decimal.RequireFromString("1725.0")))
}
