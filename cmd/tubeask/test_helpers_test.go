package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubeask/internal/config"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config file rooted in a temp directory and fills
// the credential variables with test values. extraConfig is appended to the
// generated TOML so tests can add sections like [apify] or [handle_cache].
func setupCLITestEnv(t *testing.T, extraConfig string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv(config.EnvApifyAPIKey, "apify-test-key")
	t.Setenv(config.EnvGeminiAPIKey, "gemini-test-key")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, base, extraConfig)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path, baseDir, extra string) {
	t.Helper()
	content := fmt.Sprintf("[paths]\nlog_dir = %q\ncache_dir = %q\n\n%s",
		filepath.Join(baseDir, "logs"),
		filepath.Join(baseDir, "cache"),
		extra,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = []string{"--config", configPath}
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q to not contain %q", output, substr)
	}
}
