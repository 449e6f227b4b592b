package handlecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"tubeask/internal/logging"
)

// entryTTL bounds how long a cached artifact is trusted. The backend deletes
// uploaded files 48 hours after upload, so anything close to that is gone.
const entryTTL = 46 * time.Hour

// Entry represents a cached mapping from video ID to an uploaded transcript
// artifact.
type Entry struct {
	VideoID      string    `json:"video_id"`
	ArtifactName string    `json:"artifact_name"`
	ArtifactURI  string    `json:"artifact_uri"`
	Title        string    `json:"title"`
	Channel      string    `json:"channel"`
	CachedAt     time.Time `json:"cached_at"`
}

// Expired reports whether the entry's artifact has likely been deleted
// upstream.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.CachedAt) > entryTTL
}

// Cache provides thread-safe access to the handle cache.
type Cache struct {
	path    string
	logger  *slog.Logger
	flk     *flock.Flock
	mu      sync.RWMutex
	entries map[string]Entry // keyed by video ID
	now     func() time.Time
}

// NewCache creates a new cache instance. If path is empty, the cache is
// non-functional (all operations become no-ops). The cache file is created
// lazily on the first Store call.
func NewCache(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "handlecache")

	c := &Cache{
		path:    path,
		logger:  logger,
		entries: make(map[string]Entry),
		now:     time.Now,
	}

	if path == "" {
		return c
	}
	c.flk = flock.New(path + ".lock")

	if err := c.load(); err != nil {
		logger.Warn("failed to load handle cache",
			logging.String(logging.FieldEventType, "handlecache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously indexed videos will be re-indexed"))
	}

	return c
}

// Lookup returns the cache entry for the given video ID when a usable one
// exists. Expired entries are misses.
func (c *Cache) Lookup(videoID string) (Entry, bool) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" || c.path == "" {
		return Entry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[videoID]
	if !found {
		return Entry{}, false
	}
	if entry.Expired(c.now()) {
		return Entry{}, false
	}
	return entry, true
}

// Store adds or updates an entry in the cache and persists to disk.
func (c *Cache) Store(entry Entry) error {
	entry.VideoID = strings.TrimSpace(entry.VideoID)
	if entry.VideoID == "" {
		return errors.New("video ID cannot be empty")
	}
	if entry.ArtifactURI == "" {
		return errors.New("artifact URI cannot be empty")
	}
	if c.path == "" {
		return nil // no-op when path not configured
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.VideoID] = entry

	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	c.logger.Debug("cached transcript artifact",
		logging.String(logging.FieldVideoID, entry.VideoID),
		logging.String("artifact", entry.ArtifactName),
		logging.String("title", entry.Title))

	return nil
}

// Remove deletes an entry by video ID and persists the change.
func (c *Cache) Remove(videoID string) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return errors.New("video ID cannot be empty")
	}
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[videoID]; !exists {
		return fmt.Errorf("video ID %q not found in cache", videoID)
	}

	delete(c.entries, videoID)

	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	c.logger.Debug("removed cached artifact", logging.String(logging.FieldVideoID, videoID))
	return nil
}

// List returns all cache entries sorted by CachedAt descending (newest first).
func (c *Cache) List() []Entry {
	if c.path == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})

	return entries
}

// Clear removes all entries and persists the empty cache.
func (c *Cache) Clear() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)

	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	c.logger.Debug("cleared handle cache")
	return nil
}

// Count returns the number of entries in the cache.
func (c *Cache) Count() int {
	if c.path == "" {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// load reads the cache from disk into memory.
func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read cache file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	c.entries = make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.VideoID) != "" {
			c.entries[entry.VideoID] = entry
		}
	}

	c.logger.Debug("loaded handle cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))

	return nil
}

// save writes the cache to disk atomically, holding a file lock so concurrent
// tubeask processes do not interleave writes.
func (c *Cache) save() error {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}

	// Sort for deterministic output
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	if err := c.flk.Lock(); err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer func() { _ = c.flk.Unlock() }()

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
