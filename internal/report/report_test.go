package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"econharvest/internal/model"
	"econharvest/internal/synth"
)

func cpiObservation(period, value string) model.Observation {
	return model.Observation{
		Provider: "BLS",
		Dataset:  "CPI",
		SeriesID: "CUUR0000SA0",
		Period:   period,
		Value:    decimal.RequireFromString(value),
	}
}

func TestLoadSalesRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sales_data.csv")
	records := []model.SalesRecord{
		{Year: 2020, Month: 1, StoreID: 101, Department: "Dairy",
			TotalSales: decimal.RequireFromString("15345.50"), UnitsSold: 4100},
		{Year: 2020, Month: 2, StoreID: 102, Department: "Produce",
			TotalSales: decimal.RequireFromString("20120.75"), UnitsSold: 5200},
	}
	require.NoError(t, synth.WriteCSV(path, records))

	got, err := LoadSales(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestLoadSalesHeaderOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sales_data.csv")
	content := "department,units_sold,total_sales,store_id,month,year\n" +
		"Meat,6000,25000.00,103,3,2021\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := LoadSales(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2021, got[0].Year)
	assert.Equal(t, 3, got[0].Month)
	assert.Equal(t, 103, got[0].StoreID)
	assert.Equal(t, "Meat", got[0].Department)
	assert.Equal(t, 6000, got[0].UnitsSold)
}

func TestLoadSalesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing column",
			content: "year,month,store_id,department,total_sales\n2020,1,101,Dairy,1.00\n",
			wantErr: `missing column "units_sold"`,
		},
		{
			name:    "bad month",
			content: "year,month,store_id,department,total_sales,units_sold\n2020,13,101,Dairy,1.00,10\n",
			wantErr: "month 13 out of range",
		},
		{
			name:    "bad total_sales",
			content: "year,month,store_id,department,total_sales,units_sold\n2020,1,101,Dairy,lots,10\n",
			wantErr: "bad total_sales",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "sales_data.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadSales(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeSalesLeftJoin(t *testing.T) {
	t.Parallel()

	sales := []model.SalesRecord{
		{Year: 2020, Month: 1, StoreID: 101, Department: "Dairy",
			TotalSales: decimal.NewFromInt(100), UnitsSold: 10},
		{Year: 2020, Month: 2, StoreID: 101, Department: "Dairy",
			TotalSales: decimal.NewFromInt(110), UnitsSold: 11},
	}
	cpi := []model.Observation{
		cpiObservation("2020-01", "258.8"),
		cpiObservation("2021-Q1", "260.0"),
	}

	rows := MergeSales(sales, cpi)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].CPI)
	assert.True(t, rows[0].CPI.Equal(decimal.RequireFromString("258.8")))
	assert.Nil(t, rows[1].CPI, "month without a monthly CPI observation keeps a null CPI")
	assert.Equal(t, "Dairy", rows[0].Department)
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	cpiA := decimal.RequireFromString("100")
	cpiB := decimal.RequireFromString("110")
	rows := []MergedRow{
		{Year: 2020, Month: 1, Department: "Dairy", TotalSales: decimal.NewFromInt(1000), CPI: &cpiA},
		{Year: 2020, Month: 2, Department: "Dairy", TotalSales: decimal.NewFromInt(1100), CPI: &cpiB},
		{Year: 2021, Month: 1, Department: "Meat", TotalSales: decimal.NewFromInt(3000)},
	}

	analysis := Analyze(rows)

	require.Len(t, analysis.DepartmentTotals, 2)
	assert.Equal(t, "Meat", analysis.DepartmentTotals[0].Department)
	assert.True(t, analysis.DepartmentTotals[0].TotalSales.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, "Dairy", analysis.DepartmentTotals[1].Department)
	assert.True(t, analysis.DepartmentTotals[1].TotalSales.Equal(decimal.NewFromInt(2100)))

	require.Len(t, analysis.MeanCPIByYear, 1)
	assert.Equal(t, 2020, analysis.MeanCPIByYear[0].Year)
	assert.True(t, analysis.MeanCPIByYear[0].MeanCPI.Equal(decimal.RequireFromString("105")))

	// Sales rise exactly with CPI across the two sampled rows.
	assert.Equal(t, 2, analysis.SalesCPI.Samples)
	assert.InDelta(t, 1.0, analysis.SalesCPI.Coefficient, 1e-9)
}

func TestAnalyzeTieBreaksByName(t *testing.T) {
	t.Parallel()

	rows := []MergedRow{
		{Year: 2020, Month: 1, Department: "Frozen", TotalSales: decimal.NewFromInt(500)},
		{Year: 2020, Month: 1, Department: "Deli", TotalSales: decimal.NewFromInt(500)},
	}

	analysis := Analyze(rows)
	require.Len(t, analysis.DepartmentTotals, 2)
	assert.Equal(t, "Deli", analysis.DepartmentTotals[0].Department)
	assert.Equal(t, "Frozen", analysis.DepartmentTotals[1].Department)
}

func TestAnalyzeDegenerateCorrelation(t *testing.T) {
	t.Parallel()

	cpi := decimal.NewFromInt(100)
	single := Analyze([]MergedRow{
		{Year: 2020, Month: 1, Department: "Dairy", TotalSales: decimal.NewFromInt(100), CPI: &cpi},
	})
	assert.Zero(t, single.SalesCPI.Coefficient)
	assert.Equal(t, 1, single.SalesCPI.Samples)

	flat := Analyze([]MergedRow{
		{Year: 2020, Month: 1, Department: "Dairy", TotalSales: decimal.NewFromInt(100), CPI: &cpi},
		{Year: 2020, Month: 2, Department: "Dairy", TotalSales: decimal.NewFromInt(100), CPI: &cpi},
	})
	assert.Zero(t, flat.SalesCPI.Coefficient, "zero variance yields no correlation")
}

func TestBuild(t *testing.T) {
	t.Parallel()

	outDir := filepath.Join(t.TempDir(), "processed")
	cpi := decimal.RequireFromString("258.8")
	rows := []MergedRow{
		{Year: 2020, Month: 1, StoreID: 101, Department: "Dairy",
			TotalSales: decimal.RequireFromString("15345.50"), UnitsSold: 4100, CPI: &cpi},
		{Year: 2020, Month: 2, StoreID: 101, Department: "Dairy",
			TotalSales: decimal.RequireFromString("15400.25"), UnitsSold: 4050},
	}

	result, err := Build(outDir, rows, Analyze(rows))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)

	file, err := os.Open(result.MergedCSV)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"year", "month", "store_id", "department", "total_sales", "units_sold", "CPI_U"}, records[0])
	assert.Equal(t, []string{"2020", "January", "101", "Dairy", "15345.50", "4100", "258.8"}, records[1])
	assert.Equal(t, []string{"2020", "February", "101", "Dairy", "15400.25", "4050", ""}, records[2])

	data, err := os.ReadFile(result.AnalysisJSON)
	require.NoError(t, err)
	var analysis Analysis
	require.NoError(t, json.Unmarshal(data, &analysis))
	require.Len(t, analysis.DepartmentTotals, 1)
	assert.Equal(t, "Dairy", analysis.DepartmentTotals[0].Department)

	data, err = os.ReadFile(result.MetaJSON)
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(data, &meta))
	_, err = time.Parse(time.RFC3339, meta["generated_at"])
	require.NoError(t, err)
}
