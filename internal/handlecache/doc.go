// Package handlecache provides a local cache that maps video IDs to uploaded
// transcript artifacts.
//
// With the cache enabled, asking about a previously indexed video can skip
// the submit, poll, and upload stages and answer directly against the cached
// artifact. Entries expire on the same clock as the backend's file retention,
// so a hit always points at an artifact that still exists.
//
// # Storage
//
// The cache is stored as a JSON file at a configurable path (default:
// <cache_dir>/handles.json). The format is human-readable and easy to
// inspect or edit manually. Writes are atomic and guarded by a file lock so
// concurrent tubeask invocations cannot corrupt the file.
//
// # Usage
//
// The cache is disabled by default, which keeps ask and query re-indexing on
// every invocation. Enable it in config.toml:
//
//	[handle_cache]
//	enabled = true
//
// CLI commands for inspection and management:
//
//	tubeask handles list                # List all cached artifacts
//	tubeask handles remove <video-id>   # Remove one entry
//	tubeask handles clear               # Remove all entries
package handlecache
