package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeApify()
	c.normalizeGemini()
	c.normalizeHTTP()
	if err := c.normalizeHandleCache(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeApify() {
	if value, ok := os.LookupEnv(EnvApifyAPIKey); ok {
		c.Apify.APIKey = strings.TrimSpace(value)
	}
	c.Apify.BaseURL = strings.TrimRight(strings.TrimSpace(c.Apify.BaseURL), "/")
	if c.Apify.BaseURL == "" {
		c.Apify.BaseURL = defaultApifyBaseURL
	}
	c.Apify.ActorID = strings.TrimSpace(c.Apify.ActorID)
	if c.Apify.ActorID == "" {
		c.Apify.ActorID = defaultApifyActorID
	}
	if c.Apify.PollIntervalSeconds <= 0 {
		c.Apify.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Apify.PollIntervalSeconds < minPollIntervalSeconds {
		c.Apify.PollIntervalSeconds = minPollIntervalSeconds
	}
	if c.Apify.MaxWaitSeconds <= 0 {
		c.Apify.MaxWaitSeconds = defaultMaxWaitSeconds
	}
}

func (c *Config) normalizeGemini() {
	if value, ok := os.LookupEnv(EnvGeminiAPIKey); ok {
		c.Gemini.APIKey = strings.TrimSpace(value)
	}
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	if c.Gemini.FileWaitSeconds <= 0 {
		c.Gemini.FileWaitSeconds = defaultFileWaitSeconds
	}
}

func (c *Config) normalizeHTTP() {
	if c.HTTP.TimeoutSeconds <= 0 {
		c.HTTP.TimeoutSeconds = defaultHTTPTimeoutSeconds
	}
	if c.HTTP.RetryMaxAttempts <= 0 {
		c.HTTP.RetryMaxAttempts = defaultRetryMaxAttempts
	}
}

func (c *Config) normalizeHandleCache() error {
	var err error
	if strings.TrimSpace(c.HandleCache.Path) == "" {
		c.HandleCache.Path = filepath.Join(c.Paths.CacheDir, "handles.json")
	}
	if c.HandleCache.Path, err = expandPath(c.HandleCache.Path); err != nil {
		return fmt.Errorf("handle_cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
