package testsupport

import (
	"context"
	"testing"

	"tubeask/internal/config"
	"tubeask/internal/runs"
)

// MustOpenStore opens a runs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runs.Store {
	t.Helper()

	store, err := runs.Open(cfg)
	if err != nil {
		t.Fatalf("runs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun records a fresh pipeline run for tests using the provided store.
func NewRun(t testing.TB, store *runs.Store, runKey, videoURL, videoID string) *runs.Run {
	t.Helper()

	run, err := store.NewRun(context.Background(), runKey, videoURL, videoID, "")
	if err != nil {
		t.Fatalf("store.NewRun: %v", err)
	}
	return run
}
