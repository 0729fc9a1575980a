package llm

import "strings"

// ExtractJSON returns the substring between the first '{' and the last '}' of raw.
// Models like to wrap JSON in code fences or chatter around it; this only locates the
// object, it does not parse it. Without a usable brace pair raw is returned unchanged.
func ExtractJSON(raw string) string {
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first >= 0 && last > first {
		return raw[first : last+1]
	}
	return raw
}
