package preflight

import (
	"tubeask/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every readiness check for the given config. All checks are
// local: credentials present, directories usable, enough disk for the run
// ledger and handle cache, backend base URLs well-formed. Nothing here
// touches the network.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckCredential("Apify credential", config.EnvApifyAPIKey, cfg.Apify.APIKey),
		CheckCredential("Gemini credential", config.EnvGeminiAPIKey, cfg.Gemini.APIKey),
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDiskSpace("Cache disk space", cfg.Paths.CacheDir),
		CheckBaseURL("Apify base URL", cfg.Apify.BaseURL),
		CheckBaseURL("Gemini base URL", cfg.Gemini.BaseURL),
	}
	return results
}
