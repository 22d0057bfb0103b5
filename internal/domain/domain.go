// Package domain resolves registrable domains from URLs.
package domain

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Validator resolves the registrable (eTLD+1) domain of a URL using the
// public suffix list. It is pure and safe for concurrent use.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Resolve parses rawURL and returns its registrable domain. The second
// return value is false for malformed URLs, bare IPs, and hosts without a
// valid public suffix.
func (Validator) Resolve(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	if net.ParseIP(host) != nil {
		return "", false
	}
	dom, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	// EffectiveTLDPlusOne accepts made-up suffixes; require an ICANN-managed
	// one so values like "foo.invalid" do not pass.
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || suffix == "" {
		return "", false
	}
	return dom, true
}

// SameRegistrable reports whether hostname belongs to the given registrable
// domain. It falls back to case-insensitive equality when the hostname has
// no resolvable registrable domain.
func (v Validator) SameRegistrable(hostname, registrable string) bool {
	if hostname == "" || registrable == "" {
		return false
	}
	if dom, ok := v.Resolve("https://" + hostname); ok {
		return dom == registrable
	}
	return strings.EqualFold(hostname, registrable)
}
