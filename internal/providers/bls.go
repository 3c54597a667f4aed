package providers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"econharvest/internal/model"
	"econharvest/internal/registry"
	"econharvest/internal/validate"
)

// BLS reads the v2 timeseries envelope: rows nest under
// Results.series[].data[], and the series ID rides on the series wrapper
// rather than on each row, so Extract copies it down.
type BLS struct{}

func (BLS) Name() string {
	return "BLS"
}

func (BLS) KeyField() string {
	return "registrationkey"
}

func (BLS) ProducibleFields() []string {
	return []string{"year", "period", "periodName", "value", "footnotes", "latest", "seriesID"}
}

func (BLS) Extract(body []byte, dataset registry.DatasetSpec) ([]model.RawObservation, error) {
	results := gjson.GetBytes(body, "Results")
	if !results.Exists() {
		return nil, &ParseError{Provider: "BLS", Path: "Results", Excerpt: excerpt(body)}
	}
	series := results.Get("series")
	if !series.IsArray() {
		return nil, &ParseError{Provider: "BLS", Path: "Results.series", Excerpt: excerpt(body)}
	}

	var rows []model.RawObservation
	for _, entry := range series.Array() {
		data := entry.Get("data")
		if !data.IsArray() {
			return nil, &ParseError{Provider: "BLS", Path: "Results.series.data", Excerpt: excerpt(body)}
		}
		seriesID := strings.TrimSpace(entry.Get("seriesID").String())
		for _, item := range data.Array() {
			if !item.IsObject() {
				continue
			}
			raw := make(model.RawObservation, len(item.Map())+1)
			item.ForEach(func(key, value gjson.Result) bool {
				raw[key.String()] = value.Value()
				return true
			})
			if _, ok := raw["seriesID"]; !ok && seriesID != "" {
				raw["seriesID"] = seriesID
			}
			rows = append(rows, raw)
		}
	}
	return rows, nil
}

func (BLS) Normalize(raw model.RawObservation, dataset registry.DatasetSpec) (model.Observation, error) {
	year := stringField(raw, "year")
	if !isYear(year) {
		return model.Observation{}, validate.FieldError{Field: "year", Reason: fmt.Sprintf("%q is not a four digit year", year)}
	}
	period, err := blsPeriod(year, raw)
	if err != nil {
		return model.Observation{}, err
	}
	value, err := decimalField(raw, "value")
	if err != nil {
		return model.Observation{}, validate.FieldError{Field: "value", Reason: err.Error()}
	}
	return model.Observation{
		Provider: "BLS",
		Dataset:  dataset.Name,
		SeriesID: stringField(raw, "seriesID"),
		Period:   period,
		Value:    value,
	}, nil
}

// blsPeriod maps the BLS period naming onto canonical periods:
// month names become "YYYY-MM", "1st Quarter" becomes "YYYY-Q1" and
// "Annual" collapses to the bare year. The coded period field ("M01",
// "Q02", "A01") is the fallback when periodName is absent.
func blsPeriod(year string, raw model.RawObservation) (string, error) {
	name := stringField(raw, "periodName")
	if name != "" {
		if month, ok := monthNumber(name); ok {
			return fmt.Sprintf("%s-%02d", year, month), nil
		}
		if quarter, ok := quarterNumber(name); ok {
			return fmt.Sprintf("%s-Q%d", year, quarter), nil
		}
		if strings.EqualFold(name, "annual") {
			return year, nil
		}
	}
	if code := stringField(raw, "period"); code != "" {
		if period, ok := periodFromCode(year, code); ok {
			return period, nil
		}
	}
	return "", validate.FieldError{Field: "periodName", Reason: fmt.Sprintf("unrecognized period %q", name)}
}

func monthNumber(name string) (int, bool) {
	for month := time.January; month <= time.December; month++ {
		if strings.EqualFold(name, month.String()) {
			return int(month), true
		}
	}
	return 0, false
}

func quarterNumber(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "1st quarter":
		return 1, true
	case "2nd quarter":
		return 2, true
	case "3rd quarter":
		return 3, true
	case "4th quarter":
		return 4, true
	}
	return 0, false
}

func periodFromCode(year, code string) (string, bool) {
	code = strings.ToUpper(code)
	if len(code) != 3 {
		return "", false
	}
	n, err := strconv.Atoi(code[1:])
	if err != nil {
		return "", false
	}
	switch code[0] {
	case 'M':
		if n >= 1 && n <= 12 {
			return fmt.Sprintf("%s-%02d", year, n), true
		}
		// M13 is the annual average.
		if n == 13 {
			return year, true
		}
	case 'Q':
		if n >= 1 && n <= 4 {
			return fmt.Sprintf("%s-Q%d", year, n), true
		}
	case 'A':
		return year, true
	}
	return "", false
}

func isYear(value string) bool {
	if len(value) != 4 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
