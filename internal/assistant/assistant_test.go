package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"n8n-assist-backend/internal/config"
	"n8n-assist-backend/internal/llm"
)

type fakeSender struct {
	reply    string
	err      error
	calls    int
	last     llm.NormalizedRequest
	lastEP   llm.Endpoint
	audio    []byte
	sttModel string
}

func (f *fakeSender) Send(_ context.Context, ep llm.Endpoint, req llm.NormalizedRequest) (string, error) {
	f.calls++
	f.last = req
	f.lastEP = ep
	return f.reply, f.err
}

func (f *fakeSender) Transcribe(_ context.Context, ep llm.Endpoint, model, _ string, audio []byte) (string, error) {
	f.calls++
	f.lastEP = ep
	f.sttModel = model
	f.audio = audio
	return f.reply, f.err
}

func newTestAssistant(t *testing.T, s *fakeSender) *Assistant {
	t.Helper()
	spec, err := LoadPromptSpec("")
	require.NoError(t, err)
	return New(spec, s)
}

func settings() config.Settings {
	return config.Settings{APIKey: "sk-test", Model: "gpt-4o-mini", Temperature: 0.2, UILang: "en"}
}

func TestConverseCreateWorkflow(t *testing.T) {
	s := &fakeSender{reply: `{"intent":"create_workflow","workflow":{"name":"x"}}`}
	res := newTestAssistant(t, s).Converse(context.Background(), settings(), Input{Text: "make a workflow"})

	require.Equal(t, KindCreateWorkflow, res.Kind)
	require.JSONEq(t, `{"name":"x"}`, string(res.Workflow))
	require.Equal(t, "gpt-4o-mini", res.Model)
	require.Equal(t, 1, s.calls)
}

func TestConverseToleratesLooselyTypedFields(t *testing.T) {
	cases := []struct {
		name   string
		reply  string
		kind   Kind
		answer string
		notes  string
	}{
		{"object notes", `{"intent":"create_workflow","workflow":{"name":"x"},"notes":{"tz":"Europe/Berlin"}}`, KindCreateWorkflow, "", `{"tz":"Europe/Berlin"}`},
		{"list notes", `{"intent":"create_workflow","workflow":{"name":"x"},"notes":["a","b"]}`, KindCreateWorkflow, "", `["a","b"]`},
		{"numeric answer", `{"intent":"qa","answer":42,"notes":null}`, KindQA, "42", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &fakeSender{reply: tc.reply}
			res := newTestAssistant(t, s).Converse(context.Background(), settings(), Input{Text: "go"})

			require.Equal(t, tc.kind, res.Kind)
			require.Equal(t, tc.notes, res.Notes)
			if tc.answer != "" {
				require.Equal(t, tc.answer, res.Answer)
			}
			if tc.kind == KindCreateWorkflow {
				require.JSONEq(t, `{"name":"x"}`, string(res.Workflow))
			}
		})
	}
}

func TestConverseCreateWorkflowWithoutWorkflowDowngrades(t *testing.T) {
	s := &fakeSender{reply: `{"intent":"create_workflow"}`}
	res := newTestAssistant(t, s).Converse(context.Background(), settings(), Input{Text: "make a workflow"})

	require.Equal(t, KindUnknown, res.Kind)
	require.Empty(t, res.Workflow)
	require.NotEmpty(t, res.Answer)
}

func TestConverseMissingAPIKeySkipsNetwork(t *testing.T) {
	s := &fakeSender{reply: `{"intent":"qa"}`}
	cfg := settings()
	cfg.APIKey = "  "
	res := newTestAssistant(t, s).Converse(context.Background(), cfg, Input{Text: "hi"})

	require.Equal(t, KindError, res.Kind)
	require.Equal(t, CodeMissingAPIKey, res.Code)
	require.Equal(t, 0, s.calls)
	require.NotEmpty(t, res.Message)
}

func TestConverseQAAndHelp(t *testing.T) {
	s := &fakeSender{reply: "Sure!\n```json\n{\"intent\":\"qa\",\"answer\":\"Use a Cron node.\"}\n```"}
	a := newTestAssistant(t, s)
	res := a.Converse(context.Background(), settings(), Input{Text: "how?"})
	require.Equal(t, KindQA, res.Kind)
	require.Equal(t, "Use a Cron node.", res.Answer)

	s.reply = `{"intent":"help"}`
	res = a.Converse(context.Background(), settings(), Input{Text: "help"})
	require.Equal(t, KindHelp, res.Kind)
	require.Equal(t, "Here is my assessment.", res.Answer)
}

func TestConverseUnknownIntent(t *testing.T) {
	s := &fakeSender{reply: `{"intent":"dance","answer":"no"}`}
	res := newTestAssistant(t, s).Converse(context.Background(), settings(), Input{Text: "?"})
	require.Equal(t, KindUnknown, res.Kind)
	require.Equal(t, "no", res.Answer)
}

func TestConverseInvalidJSON(t *testing.T) {
	s := &fakeSender{reply: "I cannot help with that."}
	res := newTestAssistant(t, s).Converse(context.Background(), settings(), Input{Text: "?"})
	require.Equal(t, KindError, res.Kind)
	require.Equal(t, CodeInvalidAIJSON, res.Code)
	require.NotContains(t, res.Message, "I cannot help")
}

func TestConverseUpstreamError(t *testing.T) {
	s := &fakeSender{err: &llm.UpstreamError{Status: 429, Body: "rate limited"}}
	res := newTestAssistant(t, s).Converse(context.Background(), settings(), Input{Text: "?"})
	require.Equal(t, KindError, res.Kind)
	require.Equal(t, CodeAPIError, res.Code)
	require.Equal(t, 429, res.Status)
	require.Equal(t, "rate limited", res.Detail)
	require.Contains(t, res.Message, "429")

	s.err = llm.ErrEmptyResponse
	res = newTestAssistant(t, s).Converse(context.Background(), settings(), Input{Text: "?"})
	require.Equal(t, CodeAPIError, res.Code)
}

func TestConverseUnknownModelFallsBack(t *testing.T) {
	s := &fakeSender{reply: `{"intent":"qa","answer":"ok"}`}
	cfg := settings()
	cfg.Model = "gpt-9-ultra"
	res := newTestAssistant(t, s).Converse(context.Background(), cfg, Input{Text: "?"})

	require.Equal(t, "gpt-4o", s.last.Model)
	require.Equal(t, "gpt-4o", res.Model)
	require.Equal(t, llm.ShapeChat, s.last.Shape)
	require.Equal(t, "https://api.openai.com/v1", s.lastEP.BaseURL)
}

func TestConverseResponsesModel(t *testing.T) {
	s := &fakeSender{reply: `{"intent":"qa","answer":"ok"}`}
	cfg := settings()
	cfg.Model = "o3"
	cfg.BaseURL = "http://proxy.local/v1"
	newTestAssistant(t, s).Converse(context.Background(), cfg, Input{Text: "?"})

	require.Equal(t, llm.ShapeResponses, s.last.Shape)
	require.Equal(t, "http://proxy.local/v1", s.lastEP.BaseURL)
}

func TestConverseBuildsTurns(t *testing.T) {
	s := &fakeSender{reply: `{"intent":"qa","answer":"ok"}`}
	history := []HistoryEntry{{Role: "user", Text: "old"}}
	for i := 0; i < 10; i++ {
		history = append(history, HistoryEntry{Role: "bot", Text: "reply"}, HistoryEntry{Role: "user", Text: "q"})
	}
	history = append(history, HistoryEntry{Role: "bot", Text: ""})
	big := map[string]any{"url": "http://n8n.local/workflow/1", "blob": strings.Repeat("x", 20000)}

	newTestAssistant(t, s).Converse(context.Background(), settings(), Input{
		Text:    "build it",
		Image:   "data:image/png;base64,AAAA",
		Context: big,
		History: history,
	})

	req := s.last
	require.NotEmpty(t, req.SystemInstructions)
	// 8 history entries, one of them empty and skipped, plus the new turn.
	require.Len(t, req.Turns, 8)
	require.Equal(t, llm.RoleUser, req.Turns[0].Role)
	require.Equal(t, llm.RoleAssistant, req.Turns[1].Role)
	last := req.Turns[len(req.Turns)-1]
	require.Equal(t, llm.RoleUser, last.Role)
	require.Len(t, last.Parts, 3)
	require.Equal(t, "build it", last.Parts[0].Text)
	require.Equal(t, llm.PartImage, last.Parts[1].Kind)
	ctxText := last.Parts[2].Text
	require.True(t, strings.HasPrefix(ctxText, "Context:\n{"))
	require.Equal(t, 8000, len([]rune(strings.TrimPrefix(ctxText, "Context:\n"))))
}

func TestConversePageURLBecomesContext(t *testing.T) {
	s := &fakeSender{reply: `{"intent":"qa","answer":"ok"}`}
	newTestAssistant(t, s).Converse(context.Background(), settings(), Input{Text: "hi", PageURL: "http://n8n.local/home"})

	parts := s.last.Turns[0].Parts
	require.Len(t, parts, 2)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(parts[1].Text, "Context:\n")), &got))
	require.Equal(t, "http://n8n.local/home", got["url"])
}

func TestTranscribe(t *testing.T) {
	s := &fakeSender{reply: "hallo"}
	a := newTestAssistant(t, s)
	res := a.Transcribe(context.Background(), settings(), "whisper-1", "a.webm", []byte("RIFF"))
	require.Equal(t, KindTranscript, res.Kind)
	require.Equal(t, "hallo", res.Text)
	require.Equal(t, "whisper-1", s.sttModel)

	s.err = &llm.UpstreamError{Status: 400, Body: "bad"}
	res = a.Transcribe(context.Background(), settings(), "whisper-1", "a.webm", []byte("RIFF"))
	require.Equal(t, CodeTranscribeError, res.Code)

	res = a.Transcribe(context.Background(), settings(), "whisper-1", "a.webm", nil)
	require.Equal(t, CodeTranscribeError, res.Code)
}

func TestParsePromptSpecValidation(t *testing.T) {
	_, err := ParsePromptSpec([]byte("system: hi\ndefault_model: nope\nmodels: {}\n"))
	require.Error(t, err)
	_, err = ParsePromptSpec([]byte("default_model: a\nmodels: {a: {api_shape: chat}}\n"))
	require.Error(t, err)

	spec, err := ParsePromptSpec([]byte("system: hi\ndefault_model: a\nmodels: {a: {api_shape: responses}}\n"))
	require.NoError(t, err)
	require.Equal(t, 8, spec.HistoryWindow)
	require.Equal(t, llm.ShapeResponses, spec.ResolveModel("zzz").Shape)
}
