// Package contenttype classifies URLs into coarse content categories using
// pure URL heuristics. No network access is performed.
package contenttype

import (
	"net/url"
	"strings"
)

// ContentType is the detected category of a source URL.
type ContentType string

const (
	Code          ContentType = "code"
	Research      ContentType = "research"
	News          ContentType = "news"
	Documentation ContentType = "documentation"
	General       ContentType = "general"
)

var researchDomains = map[string]bool{
	"arxiv.org":         true,
	"scholar.google":    true,
	"plos.org":          true,
	"nature.com":        true,
	"science.org":       true,
	"sciencedirect.com": true,
	"springer.com":      true,
	"ieee.org":          true,
	"acm.org":           true,
	"pubmed.ncbi":       true,
	"nih.gov":           true,
	"doi.org":           true,
	"jstor.org":         true,
	"researchgate.net":  true,
	"biorxiv.org":       true,
	"medrxiv.org":       true,
}

var codeDomains = map[string]bool{
	"github.com":        true,
	"gitlab.com":        true,
	"stackoverflow.com": true,
	"stackexchange.com": true,
	"bitbucket.org":     true,
	"codepen.io":        true,
	"codesandbox.io":    true,
	"pypi.org":          true,
	"npmjs.com":         true,
	"crates.io":         true,
	"pkg.go.dev":        true,
	"rubygems.org":      true,
	"maven.org":         true,
	"nuget.org":         true,
}

var newsDomains = map[string]bool{
	"nytimes.com":         true,
	"apnews.com":          true,
	"reuters.com":         true,
	"bbc.com":             true,
	"cnn.com":             true,
	"theguardian.com":     true,
	"washingtonpost.com":  true,
	"wsj.com":             true,
	"bloomberg.com":       true,
	"ft.com":              true,
	"npr.org":             true,
	"axios.com":           true,
	"politico.com":        true,
	"techcrunch.com":      true,
	"theverge.com":        true,
	"wired.com":           true,
	"arstechnica.com":     true,
	"forbes.com":          true,
	"businessinsider.com": true,
}

var docsPatterns = []string{
	"docs.",
	"/documentation",
	"developer.",
	"/reference",
	"/manual",
	"/guide",
	"readthedocs",
	"/api-docs",
	"/apidocs",
	"wiki.",
}

// DetectFromURL classifies a URL. Unknown or unparseable URLs are General.
func DetectFromURL(rawURL string) ContentType {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return General
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	full := strings.ToLower(host + u.Path)

	if matchDomain(host, researchDomains) {
		return Research
	}
	if matchDomain(host, codeDomains) {
		return Code
	}
	if matchDomain(host, newsDomains) {
		return News
	}
	for _, p := range docsPatterns {
		if strings.Contains(full, p) {
			return Documentation
		}
	}
	return General
}

// matchDomain checks the host and its parent domains against a domain set,
// so "subdomain.arxiv.org" still matches "arxiv.org".
func matchDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	parts := strings.Split(host, ".")
	for i := 1; i < len(parts)-1; i++ {
		if domains[strings.Join(parts[i:], ".")] {
			return true
		}
	}
	// Prefix entries like "scholar.google" and "pubmed.ncbi" match on the
	// leading labels of the host.
	for d := range domains {
		if !strings.Contains(d, "/") && strings.HasPrefix(host, d+".") || host == d {
			return true
		}
	}
	return false
}
