package utils

import (
	"net/url"
	"strings"
)

// CanonicalHostName returns a host name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dot, since URL hosts never carry one in navigation matching.
func CanonicalHostName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// NormalizeURL turns user input into an absolute URL string suitable for
// pattern matching. Input without a scheme is treated as an http URL and a
// bare host gains a trailing "/". Credentials in the authority are dropped.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.User = nil
	u.Host = CanonicalHostName(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// HostOf extracts the canonical host from an absolute URL. It returns an
// empty string when the URL cannot be parsed.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return CanonicalHostName(u.Hostname())
}
