package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"n8n-assist-backend/internal/assistant"
	"n8n-assist-backend/internal/browser"
	"n8n-assist-backend/internal/inject"
	"n8n-assist-backend/internal/llm"
	"n8n-assist-backend/internal/store"
)

// sender is swapped in tests.
var sender assistant.Sender = llm.NewClient(nil)

func newAssistant() (*assistant.Assistant, error) {
	spec, err := assistant.LoadPromptSpec(cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	return assistant.New(spec, sender), nil
}

func openBrowser(ctx context.Context, remote string, headless bool) (*browser.Tab, error) {
	if remote == "" {
		remote = cfg.Browser.RemoteURL
	}
	return browser.Open(ctx, browser.Options{RemoteURL: remote, Headless: headless || cfg.Browser.Headless})
}

func newInjector(tab *browser.Tab, st store.Store) *inject.Injector {
	return inject.NewInjector(tab, st, inject.Strategies(tab, cfg.Inject.SettleDelay), inject.Options{
		PollTimeout:  cfg.Inject.PollTimeout,
		PollInterval: cfg.Inject.PollInterval,
		MaxCycles:    cfg.Inject.MaxCycles,
		MaxAge:       cfg.Inject.PendingMaxAge,
	})
}

// placeWorkflow injects into the open tab and, when that schedules a route walk,
// follows navigations until the injection settles.
func placeWorkflow(ctx context.Context, tab *browser.Tab, st store.Store, workflow json.RawMessage) (inject.Outcome, error) {
	in := newInjector(tab, st)
	out, err := in.EnsureInjected(ctx, workflow)
	if out != inject.OutcomeScheduled {
		return out, err
	}
	return inject.NewWatcher(in).Run(ctx, tab)
}

func readWorkflow(path string) (json.RawMessage, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%s is not JSON: %w", path, err)
	}
	// accept both a bare workflow and an assistant result wrapping one
	var wrapped struct {
		Workflow json.RawMessage `json:"workflow"`
	}
	if json.Unmarshal(doc, &wrapped) == nil && len(wrapped.Workflow) > 0 && string(wrapped.Workflow) != "null" {
		return wrapped.Workflow, nil
	}
	return doc, nil
}

// imageReference turns a local file into a data URL and passes URLs through.
func imageReference(ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	b, err := os.ReadFile(ref)
	if err != nil {
		return "", err
	}
	typ := mime.TypeByExtension(filepath.Ext(ref))
	if typ == "" {
		typ = http.DetectContentType(b)
	}
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = typ[:i]
	}
	return "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
