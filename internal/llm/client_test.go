package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T, path string, status int, reply string, seen func(r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if seen != nil {
			seen(r, body)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientSendChat(t *testing.T) {
	var auth string
	var body map[string]any
	srv := newUpstream(t, "/v1/chat/completions", http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"{\"intent\":\"qa\"}"}}]}`,
		func(r *http.Request, b map[string]any) { auth = r.Header.Get("Authorization"); body = b })

	req := BuildRequest(sampleTurns(), "sys", ShapeChat, "gpt-4o", 0.2)
	got, err := NewClient(nil).Send(context.Background(), Endpoint{BaseURL: srv.URL + "/v1/", APIKey: "sk-test"}, req)
	require.NoError(t, err)
	require.Equal(t, `{"intent":"qa"}`, got)
	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, "gpt-4o", body["model"])
	require.Len(t, body["messages"], 4)
}

func TestClientSendResponses(t *testing.T) {
	var body map[string]any
	srv := newUpstream(t, "/v1/responses", http.StatusOK, `{"output_text":"hello"}`,
		func(_ *http.Request, b map[string]any) { body = b })

	req := BuildRequest(sampleTurns(), "sys", ShapeResponses, "o3", 0.2)
	got, err := NewClient(nil).Send(context.Background(), Endpoint{BaseURL: srv.URL + "/v1", APIKey: "k"}, req)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
	require.Equal(t, "sys", body["instructions"])
	require.NotContains(t, body, "temperature")
}

func TestClientSendResponsesOutputItems(t *testing.T) {
	srv := newUpstream(t, "/v1/responses", http.StatusOK,
		`{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"Hel"},{"type":"output_text","text":"lo"}]}]}`, nil)

	req := BuildRequest(sampleTurns(), "", ShapeResponses, "o3", 0)
	got, err := NewClient(nil).Send(context.Background(), Endpoint{BaseURL: srv.URL + "/v1", APIKey: "k"}, req)
	require.NoError(t, err)
	require.Equal(t, "Hello", got)
}

func TestClientSendUpstreamError(t *testing.T) {
	srv := newUpstream(t, "/v1/chat/completions", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, nil)

	_, err := NewClient(nil).Send(context.Background(), Endpoint{BaseURL: srv.URL + "/v1", APIKey: "k"},
		BuildRequest(sampleTurns(), "", ShapeChat, "gpt-4o", 0))
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	require.Equal(t, http.StatusUnauthorized, upErr.Status)
	require.Contains(t, upErr.Body, "bad key")
}

func TestClientSendEmptyAnswer(t *testing.T) {
	for _, tc := range []struct {
		shape APIShape
		path  string
		reply string
	}{
		{ShapeChat, "/v1/chat/completions", `{"choices":[{"message":{"role":"assistant","content":""}}]}`},
		{ShapeChat, "/v1/chat/completions", `{"choices":[]}`},
		{ShapeResponses, "/v1/responses", `{"output_text":"  "}`},
	} {
		srv := newUpstream(t, tc.path, http.StatusOK, tc.reply, nil)
		_, err := NewClient(nil).Send(context.Background(), Endpoint{BaseURL: srv.URL + "/v1", APIKey: "k"},
			BuildRequest(sampleTurns(), "", tc.shape, "m", 0))
		require.ErrorIs(t, err, ErrEmptyResponse)
	}
}

func TestClientTranscribe(t *testing.T) {
	var path, auth, model, filename, audio string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		model = r.FormValue("model")
		if f, hdr, err := r.FormFile("file"); err == nil {
			b, _ := io.ReadAll(f)
			f.Close()
			filename, audio = hdr.Filename, string(b)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" hallo welt "}`)
	}))
	defer srv.Close()

	got, err := NewClient(nil).Transcribe(context.Background(), Endpoint{BaseURL: srv.URL + "/v1", APIKey: "k"}, "", "audio.webm", []byte("RIFF"))
	require.NoError(t, err)
	require.Equal(t, "hallo welt", got)
	require.Equal(t, "/v1/audio/transcriptions", path)
	require.Equal(t, "Bearer k", auth)
	require.Equal(t, "whisper-1", model)
	require.Equal(t, "audio.webm", filename)
	require.Equal(t, "RIFF", audio)
}

func TestClientTranscribeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"unsupported format","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(nil).Transcribe(context.Background(), Endpoint{BaseURL: srv.URL + "/v1", APIKey: "k"}, "whisper-1", "a.webm", []byte("x"))
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	require.Equal(t, http.StatusBadRequest, upErr.Status)
	require.Contains(t, upErr.Body, "unsupported format")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 5))
	require.Equal(t, "ab", truncate("abü", 3))
	require.Equal(t, "abü", truncate("abüx", 4))
	require.True(t, utf8.ValidString(truncate("€€€", 4)))
}
