// Package sites decides on which pages the assistant widget should appear.
package sites

import (
	"net/url"
	"regexp"
	"strings"
)

var editorHeuristic = regexp.MustCompile(`(?i)n8n|/workflow|/editor|/#/workflow`)

// Match reports whether rawURL is covered by patterns. A pattern containing "*" is a
// wildcard matched against the whole host or the whole URL; any other pattern matches
// as a substring of the URL. With no patterns, URLs that look like an n8n editor match.
func Match(rawURL string, patterns []string) bool {
	if len(patterns) == 0 {
		return editorHeuristic.MatchString(rawURL)
	}
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "*") {
			if strings.Contains(rawURL, p) {
				return true
			}
			continue
		}
		re, err := wildcard(p)
		if err != nil {
			continue
		}
		if (host != "" && re.MatchString(host)) || re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Active combines pattern matching with the per-site manual switch.
func Active(rawURL string, patterns []string, manual bool) bool {
	return manual || Match(rawURL, patterns)
}

func wildcard(p string) (*regexp.Regexp, error) {
	parts := strings.Split(p, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
