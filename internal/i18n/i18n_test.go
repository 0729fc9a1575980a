package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestT(t *testing.T) {
	require.Equal(t, "Here is my assessment.", T("en", "ai.assessment", nil))
	require.Equal(t, "Hier ist meine Einschätzung.", T("fr", "ai.assessment", nil))
	require.Equal(t, "AI request failed: 502", T("en", "errors.apiError", map[string]any{"details": 502}))
	require.Equal(t, "errors.nope", T("en", "errors.nope", nil))
	require.Equal(t, "errors", T("en", "errors", nil))
}
