package main

import (
	"fmt"
	"net/url"
	"strings"
)

// extractRootDomain parses a submitted URL and returns its hostname with a
// single leading "www." label removed. The result is the canonical identifier
// for a website. Case folding, trailing dots and punycode are left as-is.
func extractRootDomain(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	host := u.Hostname()
	if u.Scheme == "" || host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidInput, raw)
	}

	return strings.TrimPrefix(host, "www."), nil
}
