// Package report merges the synthetic sales dataset with ingested CPI
// observations and derives the analysis artifacts.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"econharvest/internal/model"
)

// MergedRow is one sales row with the CPI value for its month attached.
// CPI is nil when no observation covers the month (left join).
type MergedRow struct {
	Year       int
	Month      int
	StoreID    int
	Department string
	TotalSales decimal.Decimal
	UnitsSold  int
	CPI        *decimal.Decimal
}

type Analysis struct {
	DepartmentTotals []DepartmentTotal `json:"department_totals"`
	MeanCPIByYear    []YearCPI         `json:"mean_cpi_by_year"`
	SalesCPI         Correlation       `json:"sales_cpi_correlation"`
}

type DepartmentTotal struct {
	Department string          `json:"department"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

type YearCPI struct {
	Year    int             `json:"year"`
	MeanCPI decimal.Decimal `json:"mean_cpi"`
}

// Correlation is the Pearson coefficient over rows that carry a CPI value.
type Correlation struct {
	Coefficient float64 `json:"coefficient"`
	Samples     int     `json:"samples"`
}

type metaFile struct {
	GeneratedAt string `json:"generated_at"`
}

// BuildResult lists the artifact paths written by Build.
type BuildResult struct {
	MergedCSV    string
	AnalysisJSON string
	MetaJSON     string
	Rows         int
}

var salesColumns = []string{"year", "month", "store_id", "department", "total_sales", "units_sold"}

// LoadSales reads a sales CSV produced by the generator (or any file with
// the same columns, in any order).
func LoadSales(path string) ([]model.SalesRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("sales file is empty")
	}

	header := normalizeHeader(rows[0])
	for _, column := range salesColumns {
		if _, ok := header[column]; !ok {
			return nil, fmt.Errorf("sales file missing column %q", column)
		}
	}

	records := make([]model.SalesRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		year, err := strconv.Atoi(getCell(row, header, "year"))
		if err != nil {
			return nil, fmt.Errorf("sales row %d: bad year: %w", line, err)
		}
		month, err := strconv.Atoi(getCell(row, header, "month"))
		if err != nil {
			return nil, fmt.Errorf("sales row %d: bad month: %w", line, err)
		}
		if month < 1 || month > 12 {
			return nil, fmt.Errorf("sales row %d: month %d out of range", line, month)
		}
		storeID, err := strconv.Atoi(getCell(row, header, "store_id"))
		if err != nil {
			return nil, fmt.Errorf("sales row %d: bad store_id: %w", line, err)
		}
		totalSales, err := decimal.NewFromString(getCell(row, header, "total_sales"))
		if err != nil {
			return nil, fmt.Errorf("sales row %d: bad total_sales: %w", line, err)
		}
		unitsSold, err := strconv.Atoi(getCell(row, header, "units_sold"))
		if err != nil {
			return nil, fmt.Errorf("sales row %d: bad units_sold: %w", line, err)
		}

		records = append(records, model.SalesRecord{
			Year:       year,
			Month:      month,
			StoreID:    storeID,
			Department: getCell(row, header, "department"),
			TotalSales: totalSales,
			UnitsSold:  unitsSold,
		})
	}
	return records, nil
}

// MergeSales left-joins sales rows with CPI observations on (year, month).
// Observations are expected in canonical monthly form ("YYYY-MM").
func MergeSales(sales []model.SalesRecord, cpi []model.Observation) []MergedRow {
	byPeriod := make(map[string]decimal.Decimal, len(cpi))
	for _, observation := range cpi {
		byPeriod[observation.Period] = observation.Value
	}

	rows := make([]MergedRow, 0, len(sales))
	for _, record := range sales {
		row := MergedRow{
			Year:       record.Year,
			Month:      record.Month,
			StoreID:    record.StoreID,
			Department: record.Department,
			TotalSales: record.TotalSales,
			UnitsSold:  record.UnitsSold,
		}
		if value, ok := byPeriod[model.MonthlyPeriod(record.Year, record.Month)]; ok {
			row.CPI = &value
		}
		rows = append(rows, row)
	}
	return rows
}

// Analyze computes department totals, yearly CPI means, and the sales/CPI
// Pearson correlation. Rows without a CPI value still count toward totals
// but are excluded from the CPI aggregates.
func Analyze(rows []MergedRow) Analysis {
	totals := make(map[string]decimal.Decimal)
	cpiSums := make(map[int]decimal.Decimal)
	cpiCounts := make(map[int]int)
	var sales, cpis []float64

	for _, row := range rows {
		totals[row.Department] = totals[row.Department].Add(row.TotalSales)
		if row.CPI == nil {
			continue
		}
		cpiSums[row.Year] = cpiSums[row.Year].Add(*row.CPI)
		cpiCounts[row.Year]++
		sales = append(sales, row.TotalSales.InexactFloat64())
		cpis = append(cpis, row.CPI.InexactFloat64())
	}

	departmentTotals := make([]DepartmentTotal, 0, len(totals))
	for department, total := range totals {
		departmentTotals = append(departmentTotals, DepartmentTotal{Department: department, TotalSales: total})
	}
	sort.Slice(departmentTotals, func(i, j int) bool {
		if !departmentTotals[i].TotalSales.Equal(departmentTotals[j].TotalSales) {
			return departmentTotals[i].TotalSales.GreaterThan(departmentTotals[j].TotalSales)
		}
		return departmentTotals[i].Department < departmentTotals[j].Department
	})

	years := make([]int, 0, len(cpiSums))
	for year := range cpiSums {
		years = append(years, year)
	}
	sort.Ints(years)
	meanCPI := make([]YearCPI, 0, len(years))
	for _, year := range years {
		mean := cpiSums[year].Div(decimal.NewFromInt(int64(cpiCounts[year])))
		meanCPI = append(meanCPI, YearCPI{Year: year, MeanCPI: mean})
	}

	return Analysis{
		DepartmentTotals: departmentTotals,
		MeanCPIByYear:    meanCPI,
		SalesCPI: Correlation{
			Coefficient: pearson(sales, cpis),
			Samples:     len(sales),
		},
	}
}

// Build writes merged_data.csv, analysis.json, and meta.json to outDir.
func Build(outDir string, rows []MergedRow, analysis Analysis) (BuildResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return BuildResult{}, err
	}

	result := BuildResult{
		MergedCSV:    filepath.Join(outDir, "merged_data.csv"),
		AnalysisJSON: filepath.Join(outDir, "analysis.json"),
		MetaJSON:     filepath.Join(outDir, "meta.json"),
		Rows:         len(rows),
	}

	if err := writeMerged(result.MergedCSV, rows); err != nil {
		return BuildResult{}, err
	}
	if err := writeJSON(result.AnalysisJSON, analysis); err != nil {
		return BuildResult{}, err
	}
	meta := metaFile{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := writeJSON(result.MetaJSON, meta); err != nil {
		return BuildResult{}, err
	}
	return result, nil
}

func writeMerged(path string, rows []MergedRow) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	header := []string{"year", "month", "store_id", "department", "total_sales", "units_sold", "CPI_U"}
	if err := writer.Write(header); err != nil {
		_ = file.Close()
		return err
	}
	for _, row := range rows {
		cpi := ""
		if row.CPI != nil {
			cpi = row.CPI.String()
		}
		record := []string{
			strconv.Itoa(row.Year),
			time.Month(row.Month).String(),
			strconv.Itoa(row.StoreID),
			row.Department,
			row.TotalSales.StringFixed(2),
			strconv.Itoa(row.UnitsSold),
			cpi,
		}
		if err := writer.Write(record); err != nil {
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

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// pearson returns 0 when fewer than two samples exist or either side has
// zero variance.
func pearson(xs, ys []float64) float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0
	}
	n := float64(len(xs))

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func normalizeHeader(header []string) map[string]int {
	result := make(map[string]int, len(header))
	for i, value := range header {
		key := strings.ToLower(strings.TrimSpace(value))
		if key == "" {
			continue
		}
		result[key] = i
	}
	return result
}

func getCell(record []string, header map[string]int, key string) string {
	index, ok := header[key]
	if !ok || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}
