package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"tubeask/internal/runs"
)

// seedRuns inserts a completed run and a failed run, in that order, so list
// output should show the failed one first.
func seedRuns(t *testing.T, env *cliTestEnv) {
	t.Helper()
	store, err := runs.Open(env.cfg)
	if err != nil {
		t.Fatalf("runs.Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	completed, err := store.NewRun(ctx, "run-key-1", "https://youtu.be/aaaaaaaaaaa", "aaaaaaaaaaa", "")
	if err != nil {
		t.Fatalf("NewRun completed: %v", err)
	}
	completed.Status = runs.StatusCompleted
	completed.Title = "Alpha Video"
	completed.ArtifactURI = "https://files.example/alpha"
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	failed, err := store.NewRun(ctx, "run-key-2", "https://youtu.be/bbbbbbbbbbb", "bbbbbbbbbbb", "why?")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	failed.SetFailed("job_failed", "polling: remote job failed")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("update failed: %v", err)
	}
}

func TestHistoryListEmpty(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"history", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestHistoryListShowsRunsNewestFirst(t *testing.T) {
	env := setupCLITestEnv(t, "")
	seedRuns(t, env)

	out, _, err := runCLI(t, []string{"history", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "aaaaaaaaaaa")
	requireContains(t, out, "bbbbbbbbbbb")
	requireContains(t, out, "Alpha Video")
	requireContains(t, out, "completed")
	requireContains(t, out, "job_failed")
	if strings.Index(out, "bbbbbbbbbbb") > strings.Index(out, "aaaaaaaaaaa") {
		t.Fatalf("expected newest run first:\n%s", out)
	}
}

func TestHistoryListHonorsLimit(t *testing.T) {
	env := setupCLITestEnv(t, "")
	seedRuns(t, env)

	out, _, err := runCLI(t, []string{"history", "list", "--limit", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("history list --limit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected a single row, got %d:\n%s", len(lines), out)
	}
	requireContains(t, out, "bbbbbbbbbbb")
}

func TestHistoryListJSON(t *testing.T) {
	env := setupCLITestEnv(t, "")
	seedRuns(t, env)

	out, _, err := runCLI(t, []string{"history", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history list --json: %v", err)
	}

	var views []struct {
		RunKey      string `json:"run_key"`
		VideoID     string `json:"video_id"`
		Status      string `json:"status"`
		FailureKind string `json:"failure_kind"`
		Error       string `json:"error"`
		Question    string `json:"question"`
	}
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(views))
	}
	if views[0].RunKey != "run-key-2" || views[0].Status != "failed" {
		t.Fatalf("unexpected first run: %+v", views[0])
	}
	if views[0].FailureKind != "job_failed" || !strings.Contains(views[0].Error, "polling") {
		t.Fatalf("failure fields missing: %+v", views[0])
	}
	if views[0].Question != "why?" {
		t.Fatalf("question = %q", views[0].Question)
	}
	if views[1].VideoID != "aaaaaaaaaaa" || views[1].Status != "completed" {
		t.Fatalf("unexpected second run: %+v", views[1])
	}
}

func TestHistoryStatusSummarizesRuns(t *testing.T) {
	env := setupCLITestEnv(t, "")
	seedRuns(t, env)

	out, _, err := runCLI(t, []string{"history", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("history status: %v", err)
	}
	requireContains(t, out, "completed\t1")
	requireContains(t, out, "failed\t1")
	requireContains(t, out, "2 runs: 1 completed, 1 failed, 0 in flight")
}

func TestHistoryStatusEmpty(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"history", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("history status: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestHistoryClear(t *testing.T) {
	env := setupCLITestEnv(t, "")
	seedRuns(t, env)

	out, _, err := runCLI(t, []string{"history", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Removed 2 recorded runs")

	out, _, err = runCLI(t, []string{"history", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("history list after clear: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}
