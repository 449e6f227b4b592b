// Package config loads, normalizes, and validates tubeask configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and resolves backend credentials from the
// APIFY_API_KEY and GEMINI_API_KEY environment variables. The Config type
// centralizes every knob the CLI needs, so poll cadence, retry budgets, and
// cache locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
