package testsupport

import (
	"path/filepath"
	"testing"

	"tubeask/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// API keys are filled with placeholders so credential checks pass; use
// WithoutCredentials for tests exercising the missing-credential paths.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.HandleCache.Path = filepath.Join(base, "cache", "handles.json")
	cfg.Apify.APIKey = "apify-test-key"
	cfg.Gemini.APIKey = "gemini-test-key"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithoutCredentials clears both API keys on the test config.
func WithoutCredentials() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Apify.APIKey = ""
		cfg.Gemini.APIKey = ""
	}
}

// WithHandleCache toggles the handle cache on the test config.
func WithHandleCache(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.HandleCache.Enabled = enabled
	}
}

// WithHistory toggles run-history recording on the test config.
func WithHistory(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.History.Enabled = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
