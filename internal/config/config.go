package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"tubeask/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	CacheDir string `toml:"cache_dir"`
}

// Apify contains configuration for the transcript extraction backend.
// The API key is supplied via the APIFY_API_KEY environment variable and is
// never read from the config file.
type Apify struct {
	APIKey              string `toml:"-"`
	BaseURL             string `toml:"base_url"`
	ActorID             string `toml:"actor_id"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	MaxWaitSeconds      int    `toml:"max_wait_seconds"`
}

// Gemini contains configuration for the knowledge store backend.
// The API key is supplied via the GEMINI_API_KEY environment variable and is
// never read from the config file.
type Gemini struct {
	APIKey          string `toml:"-"`
	BaseURL         string `toml:"base_url"`
	Model           string `toml:"model"`
	FileWaitSeconds int    `toml:"file_wait_seconds"`
}

// HTTP contains shared transport settings for both backends.
type HTTP struct {
	TimeoutSeconds   int `toml:"timeout_seconds"`
	RetryMaxAttempts int `toml:"retry_max_attempts"`
}

// HandleCache contains configuration for the artifact handle cache. When
// enabled, ask reuses a previously uploaded transcript for the same video
// instead of re-indexing it.
type HandleCache struct {
	Enabled bool   `toml:"enabled"` // Default: false
	Path    string `toml:"path"`    // Default: <cache_dir>/handles.json
}

// History contains configuration for the local run ledger.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tubeask.
//
// Configuration sections by subsystem:
//   - Paths: log and cache directories
//   - Apify: transcript job submission and polling
//   - Gemini: transcript upload and grounded question answering
//   - HTTP: request timeout and retry budget shared by both backends
//   - HandleCache: opt-in reuse of uploaded transcript artifacts
//   - History: local run ledger recording pipeline outcomes
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Apify       Apify       `toml:"apify"`
	Gemini      Gemini      `toml:"gemini"`
	HTTP        HTTP        `toml:"http"`
	HandleCache HandleCache `toml:"handle_cache"`
	History     History     `toml:"history"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tubeask/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized and API keys resolved
// from the environment. Credentials are not required at load time; call
// RequireCredentials before running the pipeline.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tubeask.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequireCredentials verifies that both backend API keys are present. It
// reports every missing key in one message so a first run can be fixed in a
// single edit.
func (c *Config) RequireCredentials() error {
	missing := make([]string, 0, 2)
	if strings.TrimSpace(c.Apify.APIKey) == "" {
		missing = append(missing, EnvApifyAPIKey)
	}
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		missing = append(missing, EnvGeminiAPIKey)
	}
	if len(missing) == 0 {
		return nil
	}
	detail := fmt.Sprintf("set %s in the environment", strings.Join(missing, " and "))
	return services.Wrap(services.ErrConfiguration, "", "credentials", detail, nil)
}

// PollInterval returns the transcript job poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Apify.PollIntervalSeconds) * time.Second
}

// PollMaxWait returns the total budget for waiting on a transcript job.
func (c *Config) PollMaxWait() time.Duration {
	return time.Duration(c.Apify.MaxWaitSeconds) * time.Second
}

// HTTPTimeout returns the per-request transport timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// GeminiFileWait returns the budget for waiting on uploaded file processing.
func (c *Config) GeminiFileWait() time.Duration {
	return time.Duration(c.Gemini.FileWaitSeconds) * time.Second
}

// RunsDBPath returns the location of the run ledger database.
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.Paths.CacheDir, "runs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
