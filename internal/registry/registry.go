package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
)

// Registry is the declarative description of every provider and dataset
// the collector knows how to pull. Adding a dataset is a registry edit,
// not a code change.
type Registry struct {
	Providers map[string]ProviderSpec
}

type ProviderSpec struct {
	Name         string                 `json:"-"`
	APIURL       string                 `json:"api_url"`
	APIKeyEnvVar string                 `json:"api_key_env_var"`
	Method       string                 `json:"method"`
	Datasets     map[string]DatasetSpec `json:"datasets"`
}

type DatasetSpec struct {
	Name           string         `json:"-"`
	Payload        map[string]any `json:"payload"`
	RequiredFields []string       `json:"required_fields"`
}

// ConfigError reports a registry entry the collector refuses to run with.
type ConfigError struct {
	Provider string
	Dataset  string
	Reason   string
}

func (e *ConfigError) Error() string {
	parts := []string{"registry"}
	if e.Provider != "" {
		parts = append(parts, "provider "+e.Provider)
	}
	if e.Dataset != "" {
		parts = append(parts, "dataset "+e.Dataset)
	}
	parts = append(parts, e.Reason)
	return strings.Join(parts, ": ")
}

func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes the registry document. Unknown keys inside provider or
// dataset objects are rejected rather than ignored so a typo in the
// registry surfaces at startup instead of as a silently empty request.
func Parse(data []byte) (*Registry, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var specs map[string]ProviderSpec
	if err := decoder.Decode(&specs); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	reg := &Registry{Providers: make(map[string]ProviderSpec, len(specs))}
	for name, provider := range specs {
		provider.Name = name
		provider.Method = strings.ToUpper(strings.TrimSpace(provider.Method))
		for datasetName, dataset := range provider.Datasets {
			dataset.Name = datasetName
			provider.Datasets[datasetName] = dataset
		}
		reg.Providers[name] = provider
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Validate() error {
	if len(r.Providers) == 0 {
		return &ConfigError{Reason: "no providers defined"}
	}

	for _, name := range r.ProviderNames() {
		provider := r.Providers[name]
		if strings.TrimSpace(name) == "" {
			return &ConfigError{Reason: "provider name is empty"}
		}
		if strings.TrimSpace(provider.APIURL) == "" {
			return &ConfigError{Provider: name, Reason: "api_url is required"}
		}
		parsed, err := url.Parse(provider.APIURL)
		if err != nil || !parsed.IsAbs() || parsed.Host == "" {
			return &ConfigError{Provider: name, Reason: fmt.Sprintf("api_url %q is not an absolute URL", provider.APIURL)}
		}
		if strings.TrimSpace(provider.APIKeyEnvVar) == "" {
			return &ConfigError{Provider: name, Reason: "api_key_env_var is required"}
		}
		if provider.Method != http.MethodGet && provider.Method != http.MethodPost {
			return &ConfigError{Provider: name, Reason: fmt.Sprintf("method %q is not GET or POST", provider.Method)}
		}
		if len(provider.Datasets) == 0 {
			return &ConfigError{Provider: name, Reason: "no datasets defined"}
		}
		for _, datasetName := range provider.DatasetNames() {
			dataset := provider.Datasets[datasetName]
			if strings.TrimSpace(datasetName) == "" {
				return &ConfigError{Provider: name, Reason: "dataset name is empty"}
			}
			if len(dataset.RequiredFields) == 0 {
				return &ConfigError{Provider: name, Dataset: datasetName, Reason: "required_fields is empty"}
			}
			for _, field := range dataset.RequiredFields {
				if strings.TrimSpace(field) == "" {
					return &ConfigError{Provider: name, Dataset: datasetName, Reason: "required_fields contains an empty name"}
				}
			}
		}
	}
	return nil
}

func (r *Registry) Provider(name string) (ProviderSpec, bool) {
	provider, ok := r.Providers[name]
	return provider, ok
}

func (r *Registry) ProviderNames() []string {
	names := make([]string, 0, len(r.Providers))
	for name := range r.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DatasetCount() int {
	total := 0
	for _, provider := range r.Providers {
		total += len(provider.Datasets)
	}
	return total
}

func (p ProviderSpec) DatasetNames() []string {
	names := make([]string, 0, len(p.Datasets))
	for name := range p.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
