// Package urlutil implements URL normalization and the crawl exclusion
// filter. Everything here is a pure function of its inputs: no I/O, no
// hidden state.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Validate performs basic URL validation for request inputs.
func Validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}
	return nil
}

// Normalize canonicalizes rawURL, resolving it against base when it is
// relative. It strips fragments, lower-cases scheme and host, and drops
// default ports. Non-HTTP(S) schemes are rejected.
func Normalize(rawURL string, base *url.URL) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("empty URL")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		if base == nil {
			return "", fmt.Errorf("relative URL %q without base", rawURL)
		}
		u = base.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Scheme = scheme
	u.Fragment = ""

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}
	port := u.Port()
	switch {
	case port == "":
		u.Host = host
	case scheme == "http" && port == "80", scheme == "https" && port == "443":
		u.Host = host
	default:
		u.Host = host + ":" + port
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// RegistrableDomain returns the eTLD+1 for a host, falling back to the host
// itself when the public suffix list has no answer (e.g. "localhost" or raw
// IP addresses).
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// SameSite reports whether two URL strings share a registrable domain.
func SameSite(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return RegistrableDomain(ua.Hostname()) == RegistrableDomain(ub.Hostname())
}
