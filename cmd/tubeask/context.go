package main

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tubeask/internal/config"
	"tubeask/internal/handlecache"
	"tubeask/internal/httpx"
	"tubeask/internal/logging"
	"tubeask/internal/pipeline"
	"tubeask/internal/runs"
	"tubeask/internal/services/apify"
	"tubeask/internal/services/gemini"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) verbose() bool {
	return c.verboseFlag != nil && *c.verboseFlag
}

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.verbose() {
		return "debug"
	}
	return cfg.Logging.Level
}

// pipelineLogger writes to the configured log file so stdout stays clean for
// command output. --verbose mirrors log lines to stderr.
func (c *commandContext) pipelineLogger(cfg *config.Config) *slog.Logger {
	logPath := filepath.Join(cfg.Paths.LogDir, "tubeask.log")
	outputs := []string{logPath}
	if c.verbose() {
		outputs = []string{"stderr", logPath}
	}
	logger, err := logging.New(logging.Options{
		Level:            c.resolvedLogLevel(cfg),
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withOrchestrator assembles the pipeline from configuration and hands it to
// fn. The run ledger and handle cache are attached per their config toggles.
func (c *commandContext) withOrchestrator(fn func(*pipeline.Orchestrator) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := c.pipelineLogger(cfg)

	gateway := httpx.New(
		httpx.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout()}),
		httpx.WithPolicy(httpx.Policy{MaxAttempts: cfg.HTTP.RetryMaxAttempts}),
		httpx.WithLogger(logger),
	)
	transcripts := apify.NewClient(apify.Config{
		APIKey:  cfg.Apify.APIKey,
		BaseURL: cfg.Apify.BaseURL,
		ActorID: cfg.Apify.ActorID,
	}, apify.WithGateway(gateway), apify.WithLogger(logger))
	knowledge := gemini.NewClient(gemini.Config{
		APIKey:   cfg.Gemini.APIKey,
		BaseURL:  cfg.Gemini.BaseURL,
		Model:    cfg.Gemini.Model,
		FileWait: cfg.GeminiFileWait(),
	}, gemini.WithGateway(gateway), gemini.WithLogger(logger))

	opts := make([]pipeline.Option, 0, 2)
	if cfg.History.Enabled {
		store, err := runs.Open(cfg)
		if err != nil {
			logger.Warn("run history unavailable",
				logging.String(logging.FieldEventType, "run_ledger_open_failed"),
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run will not be recorded"))
		} else {
			defer store.Close()
			opts = append(opts, pipeline.WithStore(store))
		}
	}
	if cfg.HandleCache.Enabled {
		opts = append(opts, pipeline.WithHandleCache(handlecache.NewCache(cfg.HandleCache.Path, logger)))
	}

	return fn(pipeline.New(cfg, transcripts, knowledge, logger, opts...))
}

// withRunStore opens the run ledger for history commands. Unlike pipeline
// runs, these commands exist to read the ledger, so open failures surface.
func (c *commandContext) withRunStore(fn func(*runs.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// withHandleCache opens the handle cache at its configured path. Management
// commands work even while reuse is disabled so stale entries can be cleaned
// up.
func (c *commandContext) withHandleCache(fn func(*handlecache.Cache, *config.Config) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	return fn(handlecache.NewCache(cfg.HandleCache.Path, nil), cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
