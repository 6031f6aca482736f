// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// originPolicy matches page origins against an allowlist of hosts. Both
// sides are compared in lower-case ASCII (IDNA) form.
type originPolicy struct {
	any   bool
	hosts map[string]struct{}
}

func newOriginPolicy(allowed []string) *originPolicy {
	p := &originPolicy{hosts: make(map[string]struct{}, len(allowed))}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "*" {
			p.any = true
			continue
		}
		host, err := originHost(entry)
		if err != nil {
			continue
		}
		p.hosts[host] = struct{}{}
	}
	return p
}

// Allowed reports whether origin (a URL or a bare host) is on the list.
func (p *originPolicy) Allowed(origin string) bool {
	if p.any {
		return true
	}
	host, err := originHost(origin)
	if err != nil {
		return false
	}
	_, ok := p.hosts[host]
	return ok
}

// originHost extracts and normalizes the host of a URL or bare host name.
func originHost(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty origin")
	}
	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid origin %q: %w", raw, err)
		}
		host = u.Hostname()
	} else if h, _, err := net.SplitHostPort(raw); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	if host == "" {
		return "", fmt.Errorf("origin %q has no host", raw)
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid origin host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}
