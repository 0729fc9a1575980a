package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"noise around object", "noise{\"a\":1}moretext", "{\"a\":1}"},
		{"no braces", "no braces here", "no braces here"},
		{"code fence", "```json\n{\"intent\":\"qa\"}\n```", "{\"intent\":\"qa\"}"},
		{"nested", "x {\"a\":{\"b\":2}} y", "{\"a\":{\"b\":2}}"},
		{"reversed braces", "} oops {", "} oops {"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.in); got != tc.want {
				t.Fatalf("ExtractJSON(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
