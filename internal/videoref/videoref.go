// Package videoref validates video references and extracts their canonical
// identifiers before any network work happens.
package videoref

import (
	"net/url"
	"strings"

	"tubeask/internal/services"
)

// videoIDLength is the canonical YouTube video identifier length.
const videoIDLength = 11

// Ref is a validated video reference. URL preserves the caller's original
// form; ID is the canonical video identifier extracted from it.
type Ref struct {
	URL string
	ID  string
}

// IsZero reports whether the reference carries no identifier.
func (r Ref) IsZero() bool {
	return r.ID == ""
}

// Parse validates a raw video reference and extracts the video identifier.
// Supported forms are youtube.com/watch?v=ID (including www, m, and music
// subdomains), youtu.be/ID, and the /shorts/, /embed/, and /live/ path
// variants. Anything else fails with an invalid reference error.
func Parse(raw string) (Ref, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Ref{}, invalid("empty reference")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Ref{}, services.Wrap(services.ErrInvalidReference, "", "parse reference", "malformed url", err)
	}
	switch parsed.Scheme {
	case "http", "https":
	case "":
		return Ref{}, invalid("missing http(s) scheme")
	default:
		return Ref{}, invalid("unsupported scheme " + parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	var id string
	switch {
	case host == "youtu.be":
		id = firstPathSegment(parsed.Path)
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		id = youtubeVideoID(parsed)
	default:
		return Ref{}, invalid("unrecognized video host " + host)
	}

	if !isVideoID(id) {
		return Ref{}, invalid("no extractable video id")
	}
	return Ref{URL: trimmed, ID: id}, nil
}

func youtubeVideoID(parsed *url.URL) string {
	if v := parsed.Query().Get("v"); v != "" {
		return v
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) >= 2 {
		switch segments[0] {
		case "shorts", "embed", "live":
			return segments[1]
		}
	}
	return ""
}

func firstPathSegment(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}

func isVideoID(id string) bool {
	if len(id) != videoIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func invalid(message string) error {
	return services.Wrap(services.ErrInvalidReference, "", "parse reference", message, nil)
}
