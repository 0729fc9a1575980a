package inject

import (
	"net/url"
	"regexp"
	"strings"
)

var basePrefixRe = regexp.MustCompile(`^(.*?)(?:/(workflow|workflows|editor)\b.*)?$`)

// fallbackRoutes are used when the current URL cannot be parsed.
var fallbackRoutes = []string{"/workflow/new", "/workflows/new", "/#/workflow/new", "/#/workflows/new"}

// RouteCandidates guesses "new workflow" URLs for the app at raw under the routing
// conventions seen in the wild: plain paths, hash routing and a nested editor path.
// The whole list is built up front so resumption after navigation is deterministic.
func RouteCandidates(raw string) []string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return append([]string(nil), fallbackRoutes...)
	}
	prefix := ""
	if m := basePrefixRe.FindStringSubmatch(u.Path); m != nil {
		prefix = strings.TrimRight(m[1], "/")
	}
	base := u.Scheme + "://" + u.Host + prefix
	return []string{
		base + "/workflow/new",
		base + "/workflows/new",
		base + "/#/workflow/new",
		base + "/#/workflows/new",
		base + "/editor/workflow/new",
		base + "/editor/#/workflow/new",
	}
}
