// Package preflight provides readiness checks for the credentials,
// filesystem paths, and endpoint settings a pipeline run depends on.
//
// The CLI "tubeask config doctor" command runs RunAll and renders the
// results. Every check is local and fast; connectivity problems surface
// with full classification during an actual run instead.
package preflight
