package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are deliberately
// excluded so read-only commands work without API keys.
func (c *Config) Validate() error {
	if err := c.validateApify(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateHTTP(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateApify() error {
	if !isHTTPURL(c.Apify.BaseURL) {
		return fmt.Errorf("apify.base_url must be an http(s) URL, got %q", c.Apify.BaseURL)
	}
	if strings.TrimSpace(c.Apify.ActorID) == "" {
		return errors.New("apify.actor_id must be set")
	}
	if c.Apify.MaxWaitSeconds < c.Apify.PollIntervalSeconds {
		return errors.New("apify.max_wait_seconds must be at least apify.poll_interval_seconds")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if !isHTTPURL(c.Gemini.BaseURL) {
		return fmt.Errorf("gemini.base_url must be an http(s) URL, got %q", c.Gemini.BaseURL)
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini.model must be set")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	return ensurePositiveMap(map[string]int{
		"http.timeout_seconds":        c.HTTP.TimeoutSeconds,
		"http.retry_max_attempts":     c.HTTP.RetryMaxAttempts,
		"apify.poll_interval_seconds": c.Apify.PollIntervalSeconds,
		"apify.max_wait_seconds":      c.Apify.MaxWaitSeconds,
		"gemini.file_wait_seconds":    c.Gemini.FileWaitSeconds,
	})
}

func isHTTPURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
