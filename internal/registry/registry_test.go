package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRegistry = `{
  "BLS": {
    "api_url": "https://api.bls.gov/publicAPI/v2/timeseries/data/",
    "api_key_env_var": "BLS_API_KEY",
    "method": "post",
    "datasets": {
      "CPI": {
        "payload": {"seriesid": ["CUUR0000SA0"], "startyear": "2020", "endyear": "2024"},
        "required_fields": ["year", "periodName", "value"]
      }
    }
  },
  "FRED": {
    "api_url": "https://api.stlouisfed.org/fred/series/observations",
    "api_key_env_var": "FRED_API_KEY",
    "method": "GET",
    "datasets": {
      "GDP": {
        "payload": {"series_id": "GDP", "file_type": "json"},
        "required_fields": ["date", "value"]
      }
    }
  }
}`

func TestParse(t *testing.T) {
	t.Parallel()

	reg, err := Parse([]byte(validRegistry))
	require.NoError(t, err)

	assert.Equal(t, []string{"BLS", "FRED"}, reg.ProviderNames())
	assert.Equal(t, 2, reg.DatasetCount())

	bls, ok := reg.Provider("BLS")
	require.True(t, ok)
	assert.Equal(t, "BLS", bls.Name)
	assert.Equal(t, "POST", bls.Method, "method should be normalized to upper case")

	cpi, ok := bls.Datasets["CPI"]
	require.True(t, ok)
	assert.Equal(t, "CPI", cpi.Name)
	assert.Equal(t, []string{"year", "periodName", "value"}, cpi.RequiredFields)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown provider key",
			doc:  `{"BLS": {"api_url": "https://x.test", "api_key_env_var": "K", "method": "POST", "base_url": "nope", "datasets": {"CPI": {"payload": {}, "required_fields": ["value"]}}}}`,
		},
		{
			name: "unknown dataset key",
			doc:  `{"BLS": {"api_url": "https://x.test", "api_key_env_var": "K", "method": "POST", "datasets": {"CPI": {"payload": {}, "fields": ["value"]}}}}`,
		},
		{
			name: "missing api_url",
			doc:  `{"BLS": {"api_key_env_var": "K", "method": "POST", "datasets": {"CPI": {"payload": {}, "required_fields": ["value"]}}}}`,
		},
		{
			name: "relative api_url",
			doc:  `{"BLS": {"api_url": "/timeseries/data", "api_key_env_var": "K", "method": "POST", "datasets": {"CPI": {"payload": {}, "required_fields": ["value"]}}}}`,
		},
		{
			name: "missing api_key_env_var",
			doc:  `{"BLS": {"api_url": "https://x.test", "method": "POST", "datasets": {"CPI": {"payload": {}, "required_fields": ["value"]}}}}`,
		},
		{
			name: "unsupported method",
			doc:  `{"BLS": {"api_url": "https://x.test", "api_key_env_var": "K", "method": "PUT", "datasets": {"CPI": {"payload": {}, "required_fields": ["value"]}}}}`,
		},
		{
			name: "no datasets",
			doc:  `{"BLS": {"api_url": "https://x.test", "api_key_env_var": "K", "method": "POST", "datasets": {}}}`,
		},
		{
			name: "empty required_fields",
			doc:  `{"BLS": {"api_url": "https://x.test", "api_key_env_var": "K", "method": "POST", "datasets": {"CPI": {"payload": {}, "required_fields": []}}}}`,
		},
		{
			name: "no providers",
			doc:  `{}`,
		},
		{
			name: "not json",
			doc:  `series{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(validRegistry), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, reg.Providers, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestKeyResolver(t *testing.T) {
	t.Setenv("ECONHARVEST_TEST_KEY", "s3cret")

	resolver := NewKeyResolver()

	key, err := resolver.Resolve("ECONHARVEST_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", key)

	// Lookups are memoized, so a later environment change is not seen.
	t.Setenv("ECONHARVEST_TEST_KEY", "changed")
	key, err = resolver.Resolve("ECONHARVEST_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", key)
}

func TestKeyResolverMissing(t *testing.T) {
	t.Setenv("ECONHARVEST_TEST_KEY", "")

	resolver := NewKeyResolver()

	_, err := resolver.Resolve("ECONHARVEST_TEST_KEY")
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
