package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"econharvest/internal/registry"
	"econharvest/internal/transport"
)

// BuildRequest merges a dataset's payload template with the provider's
// API key. The template itself is never touched, and both the marshaled
// body and the encoded query order keys deterministically, so the same
// registry entry and key always produce an identical request.
func BuildRequest(provider registry.ProviderSpec, dataset registry.DatasetSpec, apiKey string) (*transport.Request, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &registry.ConfigError{Provider: provider.Name, Dataset: dataset.Name, Reason: "api key is empty"}
	}
	adapter, err := ForProvider(provider.Name)
	if err != nil {
		return nil, err
	}

	switch provider.Method {
	case http.MethodPost:
		payload := make(map[string]any, len(dataset.Payload)+1)
		for key, value := range dataset.Payload {
			payload[key] = value
		}
		payload[adapter.KeyField()] = apiKey
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("providers: marshal %s/%s payload: %w", provider.Name, dataset.Name, err)
		}
		header := http.Header{}
		header.Set("Content-Type", "application/json")
		return &transport.Request{Method: http.MethodPost, URL: provider.APIURL, Header: header, Body: body}, nil

	case http.MethodGet:
		query := url.Values{}
		for key, value := range dataset.Payload {
			text, err := queryValue(value)
			if err != nil {
				return nil, &registry.ConfigError{
					Provider: provider.Name,
					Dataset:  dataset.Name,
					Reason:   fmt.Sprintf("payload field %q: %v", key, err),
				}
			}
			query.Set(key, text)
		}
		query.Set(adapter.KeyField(), apiKey)
		separator := "?"
		if strings.Contains(provider.APIURL, "?") {
			separator = "&"
		}
		return &transport.Request{
			Method: http.MethodGet,
			URL:    provider.APIURL + separator + query.Encode(),
			Header: http.Header{},
		}, nil

	default:
		return nil, &registry.ConfigError{Provider: provider.Name, Reason: fmt.Sprintf("method %q is not GET or POST", provider.Method)}
	}
}

func queryValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case []string:
		return strings.Join(v, ","), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			text, err := queryValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, text)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("unsupported type %T", value)
	}
}
