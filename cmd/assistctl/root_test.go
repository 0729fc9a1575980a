package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"n8n-assist-backend/internal/assistant"
	"n8n-assist-backend/internal/inject"
	"n8n-assist-backend/internal/llm"
	"n8n-assist-backend/internal/store"
)

type countingSender struct {
	calls int
	reply string
}

func (s *countingSender) Send(context.Context, llm.Endpoint, llm.NormalizedRequest) (string, error) {
	s.calls++
	return s.reply, nil
}

func (s *countingSender) Transcribe(context.Context, llm.Endpoint, string, string, []byte) (string, error) {
	s.calls++
	return s.reply, nil
}

// isolate points every storage and settings knob at a temp dir and clears flag state
// left behind by earlier executions.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("DB_URL", "")
	t.Setenv("SETTINGS_FILE", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("UI_LANG", "en")

	uiLang, verbose = "", false
	chatImage, chatHost, chatPageURL, chatOpen, chatRemote = "", "", "", "", ""
	chatHeadless, chatNoSave = false, false
	pendingHost = ""
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	isolate(t)

	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "assistctl")
	assert.Contains(t, out, "inject")

	_, err = run(t, "nonexistent-command")
	assert.Error(t, err)
}

func TestChatWithoutAPIKey(t *testing.T) {
	isolate(t)
	fake := &countingSender{reply: `{"intent":"qa","answer":"hi"}`}
	orig := sender
	sender = fake
	t.Cleanup(func() { sender = orig })

	out, err := run(t, "chat", "--no-save", "build me a workflow")
	require.NoError(t, err)
	assert.Contains(t, out, "Please add your API key in the settings first.")
	assert.Zero(t, fake.calls)
}

func TestChatStoresTurn(t *testing.T) {
	dir := isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	fake := &countingSender{reply: "Sure:\n```json\n{\"intent\":\"qa\",\"answer\":\"Use a Cron node.\"}\n```"}
	orig := sender
	sender = fake
	t.Cleanup(func() { sender = orig })

	out, err := run(t, "chat", "--host", "localhost:5678", "how do I schedule?")
	require.NoError(t, err)
	assert.Contains(t, out, "Use a Cron node.")
	assert.Equal(t, 1, fake.calls)

	st := store.NewFileStore(dir+"/sites", 0)
	msgs, err := st.History(context.Background(), "localhost:5678")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "Use a Cron node.", msgs[1].Text)
}

func TestTranscribeMissingFile(t *testing.T) {
	isolate(t)
	_, err := run(t, "transcribe", t.TempDir()+"/nope.webm")
	assert.Error(t, err)
}

func TestInjectRequiresURL(t *testing.T) {
	isolate(t)
	injectURL, injectFile, injectResume = "", "", false
	_, err := run(t, "inject", "--file", "wf.json")
	assert.EqualError(t, err, "--url is required")
}

func TestPendingShowAndClear(t *testing.T) {
	dir := isolate(t)
	st := store.NewFileStore(dir+"/sites", 0)
	require.NoError(t, st.SavePending(context.Background(), "localhost:5678", inject.PendingInjection{
		Workflow:        json.RawMessage(`{"nodes":[{"name":"Cron"}]}`),
		CreatedAt:       time.Now(),
		RouteIndex:      1,
		RouteCandidates: []string{"http://localhost:5678/workflow/new", "http://localhost:5678/home/workflows/new"},
		Attempts:        2,
	}))

	out, err := run(t, "pending", "show", "--host", "http://localhost:5678/home")
	require.NoError(t, err)
	assert.Contains(t, out, "attempts")
	assert.Contains(t, out, "→ http://localhost:5678/home/workflows/new")
	assert.Contains(t, out, `"Cron"`)

	out, err = run(t, "pending", "clear", "--host", "localhost:5678")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared localhost:5678")

	out, err = run(t, "pending", "show", "--host", "localhost:5678")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing pending")
}

func TestPendingRequiresHost(t *testing.T) {
	isolate(t)
	_, err := run(t, "pending", "show")
	assert.EqualError(t, err, "--host is required")
}

func TestReadWorkflowUnwrapsResult(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/result.json"
	require.NoError(t, writeFile(path, `{"kind":"create_workflow","workflow":{"nodes":[]}}`))
	wf, err := readWorkflow(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[]}`, string(wf))

	require.NoError(t, writeFile(path, `{"nodes":[],"connections":{}}`))
	wf, err = readWorkflow(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"connections":{}}`, string(wf))
}

func TestImageReference(t *testing.T) {
	ref, err := imageReference("https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", ref)

	path := t.TempDir() + "/shot.png"
	require.NoError(t, writeFile(path, "\x89PNG\r\n\x1a\n"))
	ref, err = imageReference(path)
	require.NoError(t, err)
	assert.Contains(t, ref, "data:image/png;base64,")
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestDataDirDefaultsToUserConfig(t *testing.T) {
	isolate(t)
	home := t.TempDir()
	t.Setenv("DATA_DIR", "")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	configDir, err := os.UserConfigDir()
	require.NoError(t, err)
	want := filepath.Join(configDir, "n8n-assist")

	st := store.NewFileStore(filepath.Join(want, "sites"), 0)
	require.NoError(t, st.SavePending(context.Background(), "localhost:5678", inject.PendingInjection{
		Workflow:        json.RawMessage(`{"nodes":[]}`),
		CreatedAt:       time.Now(),
		RouteCandidates: []string{"http://localhost:5678/workflow/new"},
		Attempts:        1,
	}))

	out, err := run(t, "pending", "show", "--host", "localhost:5678")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.DataDir)
	assert.Contains(t, out, "http://localhost:5678/workflow/new")
	assert.NotContains(t, out, "nothing pending")
}

type failingStore struct {
	store.Store
}

func (failingStore) AppendHistory(context.Context, string, ...store.Message) error {
	return errors.New("disk full")
}

func TestSaveTurnLogsStoreErrors(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	res := assistant.Result{Kind: assistant.KindQA, Answer: "ok"}
	saveTurn(context.Background(), failingStore{store.NewMemoryStore(0, 0)}, "localhost:5678", "hi", false, res)
	assert.Contains(t, buf.String(), "[chat] failed to store turn for localhost:5678: disk full")
}
