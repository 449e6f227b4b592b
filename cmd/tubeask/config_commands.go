package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tubeask/internal/config"
	"tubeask/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigDoctorCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Edit the file to adjust settings, then export %s and %s before running tubeask.\n",
				config.EnvApifyAPIKey, config.EnvGeminiAPIKey)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load directly instead of through ensureConfig so the resolved
			// path and file presence can be reported.
			var flagPath string
			if ctx.configFlag != nil {
				flagPath = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, path, exists, err := config.Load(flagPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file does not exist; defaults are in effect")
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "[paths]")
			fmt.Fprintf(out, "  log_dir   = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "  cache_dir = %s\n", cfg.Paths.CacheDir)

			fmt.Fprintln(out)
			fmt.Fprintln(out, "[apify]")
			fmt.Fprintf(out, "  base_url              = %s\n", cfg.Apify.BaseURL)
			fmt.Fprintf(out, "  actor_id              = %s\n", cfg.Apify.ActorID)
			fmt.Fprintf(out, "  poll_interval_seconds = %d\n", cfg.Apify.PollIntervalSeconds)
			fmt.Fprintf(out, "  max_wait_seconds      = %d\n", cfg.Apify.MaxWaitSeconds)
			fmt.Fprintf(out, "  api key               = %s\n", credentialStatus(cfg.Apify.APIKey, config.EnvApifyAPIKey))

			fmt.Fprintln(out)
			fmt.Fprintln(out, "[gemini]")
			fmt.Fprintf(out, "  base_url          = %s\n", cfg.Gemini.BaseURL)
			fmt.Fprintf(out, "  model             = %s\n", cfg.Gemini.Model)
			fmt.Fprintf(out, "  file_wait_seconds = %d\n", cfg.Gemini.FileWaitSeconds)
			fmt.Fprintf(out, "  api key           = %s\n", credentialStatus(cfg.Gemini.APIKey, config.EnvGeminiAPIKey))

			fmt.Fprintln(out)
			fmt.Fprintln(out, "[http]")
			fmt.Fprintf(out, "  timeout_seconds    = %d\n", cfg.HTTP.TimeoutSeconds)
			fmt.Fprintf(out, "  retry_max_attempts = %d\n", cfg.HTTP.RetryMaxAttempts)

			fmt.Fprintln(out)
			fmt.Fprintln(out, "[handle_cache]")
			fmt.Fprintf(out, "  enabled = %s\n", yesNo(cfg.HandleCache.Enabled))
			fmt.Fprintf(out, "  path    = %s\n", cfg.HandleCache.Path)

			fmt.Fprintln(out)
			fmt.Fprintln(out, "[history]")
			fmt.Fprintf(out, "  enabled = %s\n", yesNo(cfg.History.Enabled))

			fmt.Fprintln(out)
			fmt.Fprintln(out, "[logging]")
			fmt.Fprintf(out, "  format = %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "  level  = %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

func newConfigDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and local environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Configuration checks", colorize) {
				fmt.Fprintln(out, line)
			}

			failed := 0
			for _, result := range preflight.RunAll(cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out)
			if failed > 0 {
				return fmt.Errorf("%d configuration checks failed", failed)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

// credentialStatus reports key presence without ever echoing the value.
func credentialStatus(value, envVar string) string {
	if strings.TrimSpace(value) == "" {
		return "missing (set " + envVar + ")"
	}
	return "set (from " + envVar + ")"
}
