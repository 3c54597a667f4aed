package providers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"econharvest/internal/model"
	"econharvest/internal/registry"
)

// Adapter knows one provider's response shape: how the API key travels,
// which fields its records can carry, and how to flatten and normalize
// a response body.
type Adapter interface {
	Name() string
	KeyField() string
	ProducibleFields() []string
	Extract(body []byte, dataset registry.DatasetSpec) ([]model.RawObservation, error)
	Normalize(raw model.RawObservation, dataset registry.DatasetSpec) (model.Observation, error)
}

var (
	_ Adapter = BLS{}
	_ Adapter = FRED{}
)

// ParseError means the response envelope did not have the expected
// nesting. That points at a provider contract change, which is a
// different situation from a well-formed response with no rows.
type ParseError struct {
	Provider string
	Path     string
	Excerpt  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: response missing %q: %s", strings.ToLower(e.Provider), e.Path, e.Excerpt)
}

// ForProvider resolves a registry provider name to its adapter. The set
// is closed: a new response shape is new code, not configuration.
func ForProvider(name string) (Adapter, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "BLS":
		return BLS{}, nil
	case "FRED":
		return FRED{}, nil
	default:
		return nil, fmt.Errorf("providers: no adapter for provider %q", name)
	}
}

// CheckRegistry cross-checks every dataset's required fields against the
// fields its provider's adapter can actually produce, so an impossible
// registry entry fails before a single request is sent.
func CheckRegistry(reg *registry.Registry) error {
	for _, name := range reg.ProviderNames() {
		provider := reg.Providers[name]
		adapter, err := ForProvider(name)
		if err != nil {
			return &registry.ConfigError{Provider: name, Reason: "no adapter for provider"}
		}
		producible := make(map[string]struct{}, len(adapter.ProducibleFields()))
		for _, field := range adapter.ProducibleFields() {
			producible[field] = struct{}{}
		}
		for _, datasetName := range provider.DatasetNames() {
			for _, field := range provider.Datasets[datasetName].RequiredFields {
				if _, ok := producible[field]; !ok {
					return &registry.ConfigError{
						Provider: name,
						Dataset:  datasetName,
						Reason:   fmt.Sprintf("required field %q is not produced by the %s response shape", field, adapter.Name()),
					}
				}
			}
		}
	}
	return nil
}

func stringField(raw model.RawObservation, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func decimalField(raw model.RawObservation, key string) (decimal.Decimal, error) {
	switch v := raw[key].(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return decimal.Decimal{}, fmt.Errorf("field %s is not numeric", key)
}

const maxExcerpt = 512

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxExcerpt {
		return text[:maxExcerpt]
	}
	return text
}
