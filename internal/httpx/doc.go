// Package httpx centralizes outbound HTTP execution for the backend clients.
//
// The Gateway owns retry classification so callers never re-implement it:
// timeouts, connection errors, and 408/429/5xx responses are retried with
// exponential backoff (honoring Retry-After when present), while other
// rejections surface immediately as StatusError values the clients translate
// into their own error taxonomy. A retry budget spent entirely on transient
// failures is reported as a network exhausted error wrapping the final cause.
package httpx
