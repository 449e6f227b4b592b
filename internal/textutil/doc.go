// Package textutil provides small text helpers for scraped video metadata.
//
// Scraped titles arrive with inconsistent whitespace and occasionally in
// all-caps; CleanTitle normalizes them for display and storage. Truncate
// bounds long values for table cells and log fields.
package textutil
