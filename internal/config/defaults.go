package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultLogDir              = "~/.local/share/tubeask/logs"
	defaultApifyBaseURL        = "https://api.apify.com/v2"
	defaultApifyActorID        = "streamers~youtube-scraper"
	defaultPollIntervalSeconds = 5
	minPollIntervalSeconds     = 2
	defaultMaxWaitSeconds      = 300
	defaultGeminiBaseURL       = "https://generativelanguage.googleapis.com"
	defaultGeminiModel         = "gemini-2.5-flash"
	defaultFileWaitSeconds     = 15
	defaultHTTPTimeoutSeconds  = 120
	defaultRetryMaxAttempts    = 4
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Environment variable names for the backend credentials.
const (
	EnvApifyAPIKey  = "APIFY_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			CacheDir: defaultCacheDir(),
		},
		Apify: Apify{
			BaseURL:             defaultApifyBaseURL,
			ActorID:             defaultApifyActorID,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			MaxWaitSeconds:      defaultMaxWaitSeconds,
		},
		Gemini: Gemini{
			BaseURL:         defaultGeminiBaseURL,
			Model:           defaultGeminiModel,
			FileWaitSeconds: defaultFileWaitSeconds,
		},
		HTTP: HTTP{
			TimeoutSeconds:   defaultHTTPTimeoutSeconds,
			RetryMaxAttempts: defaultRetryMaxAttempts,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "tubeask")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/tubeask"
	}
	return filepath.Join(home, ".cache", "tubeask")
}
