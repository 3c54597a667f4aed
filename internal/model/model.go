package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawObservation is a single record exactly as the provider shaped it,
// keyed by the provider's own field names.
type RawObservation map[string]any

// Observation is the canonical form every provider normalizes into.
type Observation struct {
	Provider   string
	Dataset    string
	SeriesID   string
	Period     string
	Value      decimal.Decimal
	IngestedAt time.Time
}

type SalesRecord struct {
	Year       int
	Month      int
	StoreID    int
	Department string
	TotalSales decimal.Decimal
	UnitsSold  int
}

func MonthlyPeriod(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// PeriodYearMonth splits a canonical monthly period ("2021-03") back into
// its year and month. Quarterly and annual periods do not match.
func PeriodYearMonth(period string) (int, int, bool) {
	if len(period) != 7 || period[4] != '-' {
		return 0, 0, false
	}
	if !isDigits(period[:4]) || !isDigits(period[5:]) {
		return 0, 0, false
	}
	year := atoi(period[:4])
	month := atoi(period[5:])
	if month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func atoi(value string) int {
	n := 0
	for _, r := range value {
		n = n*10 + int(r-'0')
	}
	return n
}
