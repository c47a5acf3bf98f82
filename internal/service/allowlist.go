package service

import (
	"net/url"
	"strings"
)

const maxTargetLength = 2048

// Allowlist admits redirect targets on configured domains and their
// subdomains. An empty Allowlist admits nothing.
type Allowlist struct {
	domains []string
}

// NewAllowlist normalizes domains and drops empty entries.
func NewAllowlist(domains []string) *Allowlist {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = normalizeHost(d)
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &Allowlist{domains: normalized}
}

// Domains returns the normalized domains.
func (a *Allowlist) Domains() []string {
	return append([]string(nil), a.domains...)
}

// Allows reports whether host is an allowlisted domain or a subdomain of one.
func (a *Allowlist) Allows(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	for _, d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// ParseTarget validates a redirect target: absolute http(s) URL with a host.
func ParseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrInvalidURL
	}

	if len(raw) > maxTargetLength {
		return nil, ErrURLTooLong
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidURL
	}

	// Only allow http and https schemes
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, ErrInvalidURL
	}

	// Must have a host
	if parsed.Hostname() == "" {
		return nil, ErrInvalidURL
	}

	return parsed, nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimSuffix(host, ".")
}
