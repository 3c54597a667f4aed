package validate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"econharvest/internal/model"
)

// FieldError says which required field made a record unusable. Failing
// records are dropped one by one; the job they belong to keeps going.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// Record checks one raw record against a dataset's required fields:
// every field must be present, non-null and non-empty, and a required
// "value" must parse as a decimal. FRED marks gaps with the literal
// string "." rather than omitting the observation, so that sentinel
// fails here too.
func Record(raw model.RawObservation, requiredFields []string) error {
	for _, field := range requiredFields {
		value, ok := raw[field]
		if !ok {
			return FieldError{Field: field, Reason: "missing"}
		}
		if value == nil {
			return FieldError{Field: field, Reason: "null"}
		}
		if text, isString := value.(string); isString && strings.TrimSpace(text) == "" {
			return FieldError{Field: field, Reason: "empty"}
		}
		if field != "value" {
			continue
		}
		switch v := value.(type) {
		case string:
			if _, err := decimal.NewFromString(strings.TrimSpace(v)); err != nil {
				return FieldError{Field: field, Reason: fmt.Sprintf("%q is not a decimal", v)}
			}
		case float64, int, int64:
		default:
			return FieldError{Field: field, Reason: fmt.Sprintf("unsupported type %T", value)}
		}
	}
	return nil
}
