// Package domains extracts and classifies the host part of block patterns
// and page URLs.
package domains

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
	"golang.org/x/net/idna"
)

// wildcardPattern matches the scheme-wildcard + subdomain-wildcard form,
// e.g. "*://*.youtube.com/*".
var wildcardPattern = regexp.MustCompile(`^\*://\*\.([^/]+)/*`)

// Extract returns the domain a pattern or URL refers to. Wildcard patterns
// yield the text after "*.", concrete URLs yield their host without a leading
// "www.". Anything else yields "".
func Extract(urlOrPattern string) string {
	raw := strings.TrimSpace(urlOrPattern)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "*://*.") {
		match := wildcardPattern.FindStringSubmatch(raw)
		if match == nil {
			return ""
		}
		return normalize(match[1])
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	return normalize(host)
}

// IsPublicSuffix reports whether domain is itself a public suffix such as
// "com" or "co.uk". Blocking such a domain would block a whole TLD.
func IsPublicSuffix(domain string) bool {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return false
	}
	rule := publicsuffix.DefaultList.Find(domain, publicsuffix.DefaultFindOptions)
	if rule == nil {
		return !strings.Contains(domain, ".")
	}
	suffix := rule.Decompose(domain)[1]
	return suffix == "" || suffix == domain
}

func normalize(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || strings.ContainsAny(host, "*/ ") {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return ""
	}
	return ascii
}

// Pattern expands a bare domain into the wildcard pattern that blocks it and
// its subdomains. Values that already carry a scheme are returned trimmed.
func Pattern(domainOrPattern string) string {
	raw := strings.TrimSpace(domainOrPattern)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	host := strings.TrimPrefix(strings.TrimSuffix(raw, "/"), "*.")
	host = strings.TrimPrefix(host, "www.")
	if normalized := normalize(host); normalized != "" {
		host = normalized
	}
	return "*://*." + host + "/*"
}
