package providers

import (
	"github.com/tidwall/gjson"

	"econharvest/internal/model"
	"econharvest/internal/registry"
	"econharvest/internal/validate"
)

// FRED reads the flat observations envelope. The response never repeats
// the series ID per row, so Extract stamps it onto each record from the
// request payload.
type FRED struct{}

func (FRED) Name() string {
	return "FRED"
}

func (FRED) KeyField() string {
	return "api_key"
}

func (FRED) ProducibleFields() []string {
	return []string{"date", "value", "realtime_start", "realtime_end", "series_id"}
}

func (FRED) Extract(body []byte, dataset registry.DatasetSpec) ([]model.RawObservation, error) {
	observations := gjson.GetBytes(body, "observations")
	if !observations.IsArray() {
		return nil, &ParseError{Provider: "FRED", Path: "observations", Excerpt: excerpt(body)}
	}

	seriesID, _ := dataset.Payload["series_id"].(string)
	var rows []model.RawObservation
	for _, item := range observations.Array() {
		if !item.IsObject() {
			continue
		}
		raw := make(model.RawObservation, len(item.Map())+1)
		item.ForEach(func(key, value gjson.Result) bool {
			raw[key.String()] = value.Value()
			return true
		})
		if _, ok := raw["series_id"]; !ok && seriesID != "" {
			raw["series_id"] = seriesID
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

// Normalize keeps the FRED date string as the canonical period: the API
// already reports ISO dates, so there is nothing to translate.
func (FRED) Normalize(raw model.RawObservation, dataset registry.DatasetSpec) (model.Observation, error) {
	date := stringField(raw, "date")
	if date == "" {
		return model.Observation{}, validate.FieldError{Field: "date", Reason: "missing"}
	}
	value, err := decimalField(raw, "value")
	if err != nil {
		return model.Observation{}, validate.FieldError{Field: "value", Reason: err.Error()}
	}
	return model.Observation{
		Provider: "FRED",
		Dataset:  dataset.Name,
		SeriesID: stringField(raw, "series_id"),
		Period:   date,
		Value:    value,
	}, nil
}
