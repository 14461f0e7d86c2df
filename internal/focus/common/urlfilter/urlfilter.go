// Package urlfilter implements the URL filter syntax understood by the
// blocking engine:
//
//	||  at the start anchors to the beginning of the host or any subdomain label
//	|   at the start or end anchors to the beginning or end of the URL
//	*   matches any sequence of characters
//	^   matches a separator (anything but a letter, digit, or one of _ - . %) or the end of the URL
//
// Everything else matches literally and matching is case-insensitive. A
// filter without anchors matches anywhere in the URL.
package urlfilter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyFilter is returned for empty filters.
	ErrEmptyFilter = errors.New("url filter must not be empty")
	// ErrNonASCII is returned for filters containing non-ASCII characters.
	ErrNonASCII = errors.New("url filter must be ASCII")
	// ErrMisplacedAnchor is returned when '|' appears outside the first or last position.
	ErrMisplacedAnchor = errors.New("url filter anchor '|' allowed only at start or end")
	// ErrWildcardDomainAnchor is returned for filters starting with "||*".
	ErrWildcardDomainAnchor = errors.New("url filter must not start with '||*'")
)

const (
	domainAnchor = `^[a-z][a-z0-9+.\-]*://(?:[^/?#:@]*\.)?`
	separator    = `(?:[^a-z0-9_\-.%]|$)`
)

// Filter is a compiled URL filter.
type Filter struct {
	pattern        string
	host           string
	anchoredDomain bool
	re             *regexp.Regexp
}

// Compile parses pattern and returns a Filter.
func Compile(pattern string) (*Filter, error) {
	if pattern == "" {
		return nil, ErrEmptyFilter
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] > 0x7f {
			return nil, ErrNonASCII
		}
	}

	body := pattern
	var b strings.Builder
	b.WriteString("(?i)")

	anchoredDomain := false
	switch {
	case strings.HasPrefix(body, "||"):
		if strings.HasPrefix(body, "||*") {
			return nil, ErrWildcardDomainAnchor
		}
		anchoredDomain = true
		body = body[2:]
		b.WriteString(domainAnchor)
	case strings.HasPrefix(body, "|"):
		body = body[1:]
		b.WriteString("^")
	}

	rightAnchor := false
	if strings.HasSuffix(body, "|") {
		rightAnchor = true
		body = body[:len(body)-1]
	}
	if strings.Contains(body, "|") {
		return nil, ErrMisplacedAnchor
	}
	if body == "" {
		return nil, ErrEmptyFilter
	}

	for _, r := range body {
		switch r {
		case '*':
			b.WriteString(".*")
		case '^':
			b.WriteString(separator)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if rightAnchor {
		b.WriteString("$")
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("url filter %q: %w", pattern, err)
	}

	f := &Filter{pattern: pattern, anchoredDomain: anchoredDomain, re: re}
	if anchoredDomain {
		f.host = anchoredHost(body)
	}
	return f, nil
}

// Pattern returns the source pattern.
func (f *Filter) Pattern() string { return f.pattern }

// AnchoredHost returns the host a "||host^" style filter is pinned to, or ""
// when the filter can match URLs on arbitrary hosts.
func (f *Filter) AnchoredHost() string { return f.host }

// Match reports whether the absolute URL matches the filter. Domain anchors
// look at the host only, so credentials in the authority cannot stand in for
// it ("https://example.com@evil.test/" is on evil.test).
func (f *Filter) Match(url string) bool {
	if f.anchoredDomain {
		url = stripUserinfo(url)
	}
	return f.re.MatchString(url)
}

// stripUserinfo removes "user:pass@" from the authority of url.
func stripUserinfo(url string) string {
	i := strings.Index(url, "://")
	if i < 0 {
		return url
	}
	start := i + 3
	end := len(url)
	if j := strings.IndexAny(url[start:], "/?#"); j >= 0 {
		end = start + j
	}
	at := strings.LastIndexByte(url[start:end], '@')
	if at < 0 {
		return url
	}
	return url[:start] + url[start+at+1:]
}

// anchoredHost extracts the literal host following a domain anchor. It only
// succeeds when the host is terminated by a separator, port or path and
// contains no wildcard; "||example.com" alone also matches
// "example.company.org" and so pins nothing.
func anchoredHost(body string) string {
	end := strings.IndexAny(body, "^/:?")
	if end <= 0 {
		return ""
	}
	host := body[:end]
	if strings.ContainsAny(host, "*") {
		return ""
	}
	return strings.ToLower(host)
}
