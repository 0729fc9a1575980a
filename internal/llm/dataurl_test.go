package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeDataURL(t *testing.T) {
	mime, b, err := DecodeDataURL("data:audio/webm;codecs=opus;base64,aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, "audio/webm", mime)
	require.Equal(t, "hello", string(b))

	mime, b, err = DecodeDataURL("data:,a%20b")
	require.NoError(t, err)
	require.Equal(t, "text/plain", mime)
	require.Equal(t, "a b", string(b))

	_, _, err = DecodeDataURL("http://example.com/a.webm")
	require.ErrorIs(t, err, ErrInvalidDataURL)

	_, _, err = DecodeDataURL("data:audio/webm;base64,***")
	require.ErrorIs(t, err, ErrInvalidDataURL)
}

func TestExtensionFor(t *testing.T) {
	require.Equal(t, ".mp3", ExtensionFor("audio/mpeg"))
	require.Equal(t, ".webm", ExtensionFor("audio/webm"))
	require.Equal(t, ".webm", ExtensionFor(""))
}
