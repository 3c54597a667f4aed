package registry

import (
	"os"
	"strings"
	"sync"
)

// KeyResolver looks up provider API keys from the environment, caching
// hits so each variable is read once per run.
type KeyResolver struct {
	mu    sync.Mutex
	cache map[string]string
}

func NewKeyResolver() *KeyResolver {
	return &KeyResolver{cache: make(map[string]string)}
}

func (r *KeyResolver) Resolve(envVar string) (string, error) {
	if strings.TrimSpace(envVar) == "" {
		return "", &ConfigError{Reason: "api_key_env_var is empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.cache[envVar]; ok {
		return key, nil
	}

	key := strings.TrimSpace(os.Getenv(envVar))
	if key == "" {
		return "", &ConfigError{Reason: "environment variable " + envVar + " is not set"}
	}
	r.cache[envVar] = key
	return key, nil
}
