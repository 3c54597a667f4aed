package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econharvest/internal/model"
)

func TestWriteDataset(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "raw")
	fields := []string{"year", "period", "periodName", "value", "footnotes"}
	rows := []model.RawObservation{
		{
			"year":       "2024",
			"period":     "M01",
			"periodName": "January",
			"value":      "308.417",
			"footnotes":  []any{map[string]any{}},
		},
		{
			"year":       "2024",
			"period":     "M02",
			"periodName": "February",
			"value":      310.326,
		},
	}

	path, err := WriteDataset(dir, "CPI", fields, rows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cpi_data.csv"), path)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, fields, records[0])
	assert.Equal(t, []string{"2024", "M01", "January", "308.417", "[{}]"}, records[1])
	assert.Equal(t, []string{"2024", "M02", "February", "310.326", ""}, records[2])
}

func TestWriteDatasetEmptyRows(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := WriteDataset(dir, "GDP", []string{"date", "value"}, nil)
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"date", "value"}, records[0])
}

func TestWriteDatasetCreatesDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "deeper")
	_, err := WriteDataset(dir, "PCE", []string{"date", "value"}, nil)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "pce_data.csv"))
	require.NoError(t, err)
}
