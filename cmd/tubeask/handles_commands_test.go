package main

import (
	"encoding/json"
	"testing"
	"time"

	"tubeask/internal/handlecache"
)

func seedHandles(t *testing.T, env *cliTestEnv, entries ...handlecache.Entry) {
	t.Helper()

	cache := handlecache.NewCache(env.cfg.HandleCache.Path, nil)
	for _, entry := range entries {
		if err := cache.Store(entry); err != nil {
			t.Fatalf("seed handle cache: %v", err)
		}
	}
}

func TestHandlesListEmpty(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"handles", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("handles list failed: %v", err)
	}
	requireContains(t, out, "Handle cache is empty")
}

func TestHandlesListShowsEntriesAndDisabledNote(t *testing.T) {
	env := setupCLITestEnv(t, "")
	seedHandles(t, env, handlecache.Entry{
		VideoID:      testVideoID,
		ArtifactName: "files/abc123",
		ArtifactURI:  "https://files.example/abc123",
		Title:        "A Video",
		Channel:      "A Channel",
	})

	out, _, err := runCLI(t, []string{"handles", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("handles list failed: %v", err)
	}
	requireContains(t, out, testVideoID)
	requireContains(t, out, "A Video")
	requireContains(t, out, "files/abc123")
	requireContains(t, out, "Handle reuse is disabled")
}

func TestHandlesListOmitsDisabledNoteWhenEnabled(t *testing.T) {
	env := setupCLITestEnv(t, "[handle_cache]\nenabled = true\n")
	seedHandles(t, env, handlecache.Entry{
		VideoID:     testVideoID,
		ArtifactURI: "https://files.example/abc123",
	})

	out, _, err := runCLI(t, []string{"handles", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("handles list failed: %v", err)
	}
	requireContains(t, out, testVideoID)
	requireNotContains(t, out, "Handle reuse is disabled")
}

func TestHandlesListJSON(t *testing.T) {
	env := setupCLITestEnv(t, "")
	cachedAt := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	seedHandles(t, env, handlecache.Entry{
		VideoID:      testVideoID,
		ArtifactName: "files/abc123",
		ArtifactURI:  "https://files.example/abc123",
		Title:        "A Video",
		Channel:      "A Channel",
		CachedAt:     cachedAt,
	})

	out, _, err := runCLI(t, []string{"handles", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("handles list --json failed: %v", err)
	}

	var views []struct {
		VideoID      string `json:"video_id"`
		ArtifactName string `json:"artifact_name"`
		ArtifactURI  string `json:"artifact_uri"`
		Title        string `json:"title"`
		CachedAt     string `json:"cached_at"`
	}
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("parse handles JSON: %v\noutput: %s", err, out)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 cached handle, got %d", len(views))
	}
	if views[0].VideoID != testVideoID {
		t.Fatalf("unexpected video ID: %q", views[0].VideoID)
	}
	if views[0].ArtifactURI != "https://files.example/abc123" {
		t.Fatalf("unexpected artifact URI: %q", views[0].ArtifactURI)
	}
	if views[0].CachedAt != cachedAt.Format(time.RFC3339) {
		t.Fatalf("unexpected cached_at: %q", views[0].CachedAt)
	}
}

func TestHandlesRemoveAcceptsURL(t *testing.T) {
	env := setupCLITestEnv(t, "")
	seedHandles(t, env, handlecache.Entry{
		VideoID:     testVideoID,
		ArtifactURI: "https://files.example/abc123",
	})

	out, _, err := runCLI(t, []string{"handles", "remove", "https://youtu.be/" + testVideoID}, env.configPath)
	if err != nil {
		t.Fatalf("handles remove failed: %v", err)
	}
	requireContains(t, out, "Removed cached handle for "+testVideoID)

	out, _, err = runCLI(t, []string{"handles", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("handles list failed: %v", err)
	}
	requireContains(t, out, "Handle cache is empty")
}

func TestHandlesRemoveMissing(t *testing.T) {
	env := setupCLITestEnv(t, "")

	_, _, err := runCLI(t, []string{"handles", "remove", testVideoID}, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing cache entry")
	}
	requireContains(t, err.Error(), "not found in cache")
}

func TestHandlesClear(t *testing.T) {
	env := setupCLITestEnv(t, "")
	seedHandles(t, env,
		handlecache.Entry{VideoID: "aaaaaaaaaaa", ArtifactURI: "https://files.example/a"},
		handlecache.Entry{VideoID: "bbbbbbbbbbb", ArtifactURI: "https://files.example/b"},
	)

	out, _, err := runCLI(t, []string{"handles", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("handles clear failed: %v", err)
	}
	requireContains(t, out, "Removed 2 cached handles")

	out, _, err = runCLI(t, []string{"handles", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("handles list failed: %v", err)
	}
	requireContains(t, out, "Handle cache is empty")
}
