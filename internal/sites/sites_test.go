package sites

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		patterns []string
		want     bool
	}{
		{"heuristic n8n host", "https://n8n.acme.io/home", nil, true},
		{"heuristic editor path", "https://automation.acme.io/workflow/12", nil, true},
		{"heuristic miss", "https://example.com/blog", nil, false},
		{"wildcard host", "https://flows.acme.io/home", []string{"*.acme.io"}, true},
		{"wildcard does not match apex", "https://acme.io/home", []string{"*.acme.io"}, false},
		{"wildcard full url", "http://localhost:5678/workflow/1", []string{"http://localhost:*"}, true},
		{"dots are literal", "https://flowsXacme.io/", []string{"flows.acme.*"}, false},
		{"substring", "http://localhost:5678/home", []string{"localhost:5678"}, true},
		{"substring miss", "http://localhost:5679/home", []string{"localhost:5678"}, false},
		{"blank patterns skipped", "https://example.com/", []string{" ", ""}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Match(tc.url, tc.patterns))
		})
	}
}

func TestActive(t *testing.T) {
	require.True(t, Active("https://example.com/", []string{"acme.io"}, true))
	require.False(t, Active("https://example.com/", []string{"acme.io"}, false))
	require.True(t, Active("https://acme.io/", []string{"acme.io"}, false))
}
