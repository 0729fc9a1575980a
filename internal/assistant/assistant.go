// Package assistant turns a user's chat turn into a classified intent by asking an
// upstream model and rescuing a JSON object from its reply.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"n8n-assist-backend/internal/config"
	"n8n-assist-backend/internal/i18n"
	"n8n-assist-backend/internal/llm"
)

// Sender is the upstream collaborator; *llm.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, ep llm.Endpoint, req llm.NormalizedRequest) (string, error)
	Transcribe(ctx context.Context, ep llm.Endpoint, model, filename string, audio []byte) (string, error)
}

// HistoryEntry is one stored chat line. Role "bot" is the widget's name for the assistant.
type HistoryEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Input is one user turn as the widget sends it.
type Input struct {
	Text    string         `json:"text"`
	Image   string         `json:"image,omitempty"`
	PageURL string         `json:"pageUrl,omitempty"`
	Context any            `json:"context,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`
}

type Assistant struct {
	spec   PromptSpec
	sender Sender
}

func New(spec PromptSpec, sender Sender) *Assistant {
	return &Assistant{spec: spec, sender: sender}
}

func (a *Assistant) Spec() PromptSpec { return a.spec }

// modelReply keeps fields raw; notes and answer arrive as lists, objects or numbers too.
type modelReply struct {
	Intent   json.RawMessage `json:"intent"`
	Answer   json.RawMessage `json:"answer"`
	Workflow json.RawMessage `json:"workflow"`
	Notes    json.RawMessage `json:"notes"`
}

// fieldText renders a loosely typed reply field: strings as-is, null as empty, anything
// else as compact JSON.
func fieldText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return trimmed
	}
	return buf.String()
}

// Converse runs one turn. It never returns a Go error: every failure is folded into a
// KindError result.
func (a *Assistant) Converse(ctx context.Context, s config.Settings, in Input) Result {
	lang := i18n.Normalize(s.UILang)
	if strings.TrimSpace(s.APIKey) == "" {
		return errorResult(lang, CodeMissingAPIKey, 0, "")
	}

	model := a.spec.ResolveModel(s.Model)
	turns := a.buildTurns(lang, in)
	req := llm.BuildRequest(turns, a.spec.System, model.Shape, model.Name, s.Temperature)

	ep := llm.Endpoint{BaseURL: model.BaseURL, APIKey: s.APIKey}
	if strings.TrimSpace(s.BaseURL) != "" {
		ep.BaseURL = s.BaseURL
	}
	raw, err := a.sender.Send(ctx, ep, req)
	if err != nil {
		log.Printf("[chat] upstream call failed (model=%s shape=%s): %v", model.Name, model.Shape, err)
		return upstreamError(lang, CodeAPIError, err)
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &reply); err != nil {
		log.Printf("[chat] invalid AI JSON: %v; raw: %s", err, raw)
		return errorResult(lang, CodeInvalidAIJSON, 0, "")
	}
	res := classify(lang, reply)
	res.Model = model.Name
	return res
}

func classify(lang string, reply modelReply) Result {
	intent := Kind(strings.TrimSpace(fieldText(reply.Intent)))
	notes := fieldText(reply.Notes)
	answer := strings.TrimSpace(fieldText(reply.Answer))
	switch intent {
	case KindCreateWorkflow:
		if hasWorkflow(reply.Workflow) {
			return Result{Kind: KindCreateWorkflow, Workflow: reply.Workflow, Notes: notes}
		}
	case KindQA, KindHelp:
		if answer == "" {
			answer = i18n.T(lang, "ai.assessment", nil)
		}
		return Result{Kind: intent, Answer: answer, Notes: notes}
	}
	if answer == "" {
		answer = i18n.T(lang, "ai.unknown", nil)
	}
	return Result{Kind: KindUnknown, Answer: answer, Notes: notes}
}

func hasWorkflow(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "{}", "[]", `""`, "false", "0":
		return false
	}
	return true
}

// buildTurns maps the recent history and appends the new user turn. The page context
// is serialized and capped before it rides along as an extra text part.
func (a *Assistant) buildTurns(lang string, in Input) []llm.Turn {
	history := in.History
	if n := a.spec.HistoryWindow; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	turns := make([]llm.Turn, 0, len(history)+1)
	for _, h := range history {
		txt := strings.TrimSpace(h.Text)
		if txt == "" {
			continue
		}
		role := llm.RoleAssistant
		if h.Role == llm.RoleUser {
			role = llm.RoleUser
		}
		turns = append(turns, llm.Turn{Role: role, Parts: []llm.Part{llm.TextPart(h.Text)}})
	}

	var parts []llm.Part
	if in.Text != "" {
		parts = append(parts, llm.TextPart(in.Text))
	}
	if strings.TrimSpace(in.Image) != "" {
		parts = append(parts, llm.ImagePart(in.Image))
	}
	pageCtx := in.Context
	if pageCtx == nil && in.PageURL != "" {
		pageCtx = map[string]any{"url": in.PageURL}
	}
	if pageCtx != nil {
		if b, err := json.Marshal(pageCtx); err == nil {
			snippet := truncateRunes(string(b), a.spec.ContextLimit)
			parts = append(parts, llm.TextPart(fmt.Sprintf("%s:\n%s", i18n.T(lang, "ai.contextLabel", nil), snippet)))
		}
	}
	return append(turns, llm.Turn{Role: llm.RoleUser, Parts: parts})
}

// Transcribe converts recorded audio to text.
func (a *Assistant) Transcribe(ctx context.Context, s config.Settings, sttModel, filename string, audio []byte) Result {
	lang := i18n.Normalize(s.UILang)
	if strings.TrimSpace(s.APIKey) == "" {
		return errorResult(lang, CodeMissingAPIKey, 0, "")
	}
	if len(audio) == 0 {
		return Result{Kind: KindError, Code: CodeTranscribeError, Message: i18n.T(lang, "errors.noAudio", nil)}
	}
	ep := llm.Endpoint{BaseURL: s.BaseURL, APIKey: s.APIKey}
	if ep.BaseURL == "" {
		ep.BaseURL = a.spec.ResolveModel(s.Model).BaseURL
	}
	text, err := a.sender.Transcribe(ctx, ep, sttModel, filename, audio)
	if err != nil {
		log.Printf("[voice] transcription failed: %v", err)
		return upstreamError(lang, CodeTranscribeError, err)
	}
	return Result{Kind: KindTranscript, Text: text}
}

func upstreamError(lang string, code Code, err error) Result {
	var upErr *llm.UpstreamError
	switch {
	case errors.As(err, &upErr):
		return errorResult(lang, code, upErr.Status, upErr.Body)
	case errors.Is(err, llm.ErrEmptyResponse):
		return errorResult(lang, code, 0, i18n.T(lang, "errors.emptyAi", nil))
	default:
		return errorResult(lang, code, 0, err.Error())
	}
}

func errorResult(lang string, code Code, status int, detail string) Result {
	details := detail
	if status > 0 {
		details = strings.TrimSpace(fmt.Sprintf("%d %s", status, detail))
	}
	var msg string
	switch code {
	case CodeMissingAPIKey:
		msg = i18n.T(lang, "errors.missingApiKey", nil)
	case CodeInvalidAIJSON:
		msg = i18n.T(lang, "errors.invalidAiJson", nil)
	case CodeTranscribeError:
		msg = i18n.T(lang, "errors.transcribe", map[string]any{"details": details})
	case CodeInjectionFailed:
		msg = i18n.T(lang, "errors.importFailed", nil)
	default:
		msg = i18n.T(lang, "errors.apiError", map[string]any{"details": details})
	}
	return Result{Kind: KindError, Code: code, Status: status, Detail: detail, Message: msg}
}

// InjectionFailed is the result reported when a workflow could not be placed on a canvas.
func InjectionFailed(uiLang, detail string) Result {
	return errorResult(i18n.Normalize(uiLang), CodeInjectionFailed, 0, detail)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
