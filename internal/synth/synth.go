// Package synth generates the deterministic synthetic sales dataset consumed
// by the report builder.
package synth

import (
	"encoding/csv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"econharvest/internal/model"
)

var departments = []string{
	"Produce", "Dairy", "Meat", "Seafood", "Grocery",
	"Non-food", "Liquor", "Floral", "Frozen", "Deli",
}

var baseSales = map[string]float64{
	"Produce": 20000, "Dairy": 15000, "Meat": 25000, "Seafood": 10000, "Grocery": 50000,
	"Non-food": 30000, "Liquor": 12000, "Floral": 5000, "Frozen": 10000, "Deli": 8000,
}

var baseUnits = map[string]float64{
	"Produce": 5000, "Dairy": 4000, "Meat": 6000, "Seafood": 3000, "Grocery": 8000,
	"Non-food": 7000, "Liquor": 1200, "Floral": 1000, "Frozen": 3500, "Deli": 1500,
}

// Monthly compounding growth per department.
var growthRates = map[string]float64{
	"Produce": 0.002, "Dairy": 0.0015, "Meat": 0.0025, "Seafood": 0.002, "Grocery": 0.003,
	"Non-food": 0.001, "Liquor": 0.0018, "Floral": 0.0022, "Frozen": 0.0015, "Deli": 0.002,
}

// Seasonal multipliers indexed by month-1.
var seasonality = map[string][12]float64{
	"Produce":  {1.0, 1.0, 1.1, 1.1, 1.05, 1.0, 1.0, 1.0, 1.1, 1.2, 1.2, 1.3},
	"Dairy":    {1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
	"Meat":     {1.1, 1.1, 1.2, 1.2, 1.1, 1.0, 1.0, 1.0, 1.0, 1.1, 1.2, 1.3},
	"Seafood":  {1.0, 1.0, 1.1, 1.2, 1.2, 1.1, 1.0, 1.0, 1.0, 1.2, 1.3, 1.4},
	"Grocery":  {1.05, 1.0, 1.0, 1.0, 1.0, 1.05, 1.1, 1.1, 1.1, 1.2, 1.3, 1.4},
	"Non-food": {1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
	"Liquor":   {1.0, 1.0, 1.0, 1.0, 1.2, 1.3, 1.2, 1.2, 1.1, 1.2, 1.3, 1.5},
	"Floral":   {1.0, 1.5, 1.0, 1.0, 1.0, 1.2, 1.0, 1.0, 1.0, 1.1, 1.2, 1.3},
	"Frozen":   {1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
	"Deli":     {1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
}

type Config struct {
	StartYear int
	EndYear   int
	StoreLow  int
	StoreHigh int
	Seed      int64
}

func DefaultConfig() Config {
	return Config{
		StartYear: 2020,
		EndYear:   2024,
		StoreLow:  101,
		StoreHigh: 125,
		Seed:      42,
	}
}

// Generate builds one row per month, store, and department. CPI values are
// keyed by monthly period ("YYYY-MM"); sales scale with CPI relative to the
// first generated month while unit counts do not. Months without a CPI value
// fall back to a neutral multiplier. Output is deterministic for a fixed
// seed and sorted by year, month, store, department.
func Generate(cfg Config, cpi map[string]decimal.Decimal) []model.SalesRecord {
	rng := rand.New(rand.NewSource(cfg.Seed))

	years := cfg.EndYear - cfg.StartYear + 1
	stores := cfg.StoreHigh - cfg.StoreLow + 1
	records := make([]model.SalesRecord, 0, years*12*stores*len(departments))

	baseCPI := cpiValue(cpi, model.MonthlyPeriod(cfg.StartYear, 1))

	for year := cfg.StartYear; year <= cfg.EndYear; year++ {
		for month := 1; month <= 12; month++ {
			cpiMultiplier := cpiValue(cpi, model.MonthlyPeriod(year, month)) / baseCPI
			monthsSinceStart := (year-cfg.StartYear)*12 + (month - 1)

			for store := cfg.StoreLow; store <= cfg.StoreHigh; store++ {
				for _, department := range departments {
					growth := math.Pow(1+growthRates[department], float64(monthsSinceStart))
					season := seasonality[department][month-1]

					salesNoise := 0.8 + rng.Float64()*0.4
					unitsNoise := 0.8 + rng.Float64()*0.4

					totalSales := baseSales[department] * growth * season * salesNoise * cpiMultiplier
					unitsSold := baseUnits[department] * growth * season * unitsNoise

					records = append(records, model.SalesRecord{
						Year:       year,
						Month:      month,
						StoreID:    store,
						Department: department,
						TotalSales: decimal.NewFromFloat(totalSales).Round(2),
						UnitsSold:  int(unitsSold),
					})
				}
			}
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.Department < b.Department
	})
	return records
}

func cpiValue(cpi map[string]decimal.Decimal, period string) float64 {
	if value, ok := cpi[period]; ok {
		return value.InexactFloat64()
	}
	return 1.0
}

// WriteCSV writes records in the year,month,store_id,department,total_sales,
// units_sold layout the report builder reads back.
func WriteCSV(path string, records []model.SalesRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	header := []string{"year", "month", "store_id", "department", "total_sales", "units_sold"}
	if err := writer.Write(header); err != nil {
		_ = file.Close()
		return err
	}
	for _, record := range records {
		row := []string{
			strconv.Itoa(record.Year),
			strconv.Itoa(record.Month),
			strconv.Itoa(record.StoreID),
			record.Department,
			record.TotalSales.StringFixed(2),
			strconv.Itoa(record.UnitsSold),
		}
		if err := writer.Write(row); err != nil {
			_ = file.Close()
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
