package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"n8n-assist-backend/internal/assistant"
	"n8n-assist-backend/internal/i18n"
	"n8n-assist-backend/internal/inject"
	"n8n-assist-backend/internal/llm"
	"n8n-assist-backend/internal/store"
	"n8n-assist-backend/internal/types"
)

const maxAudioBytes = 25 << 20

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.Image) == "" {
		s.writeError(w, http.StatusBadRequest, "text or image is required")
		return
	}
	host := strings.ToLower(strings.TrimSpace(req.Host))
	if host == "" {
		host = inject.HostKey(req.PageURL)
	}
	settings := s.Settings()

	in := assistant.Input{Text: req.Text, Image: req.Image, PageURL: req.PageURL}
	if len(req.Context) > 0 && string(req.Context) != "null" {
		in.Context = req.Context
	}
	if len(req.History) > 0 {
		in.History = historyEntries(req.History)
	} else {
		stored, err := s.store.History(r.Context(), host)
		if err != nil {
			log.Printf("[chat] load history for %s: %v", host, err)
		}
		in.History = storedEntries(stored)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()
	res := s.assistant.Converse(ctx, settings, in)

	if req.Remember == nil || *req.Remember {
		s.remember(r.Context(), host, settings.UILang, req, res)
	}
	s.writeJSON(w, http.StatusOK, res)
}

// remember appends the user turn and the reply to the host's history.
func (s *Server) remember(ctx context.Context, host, lang string, req types.ChatRequest, res assistant.Result) {
	userText := req.Text
	if strings.TrimSpace(userText) == "" {
		userText = i18n.T(lang, "status.onlyImage", nil)
	}
	reply := res.Reply()
	if res.Kind == assistant.KindCreateWorkflow {
		reply = res.Notes
		if strings.TrimSpace(reply) == "" {
			reply = i18n.T(lang, "status.created", nil)
		}
	}
	err := s.store.AppendHistory(ctx, host,
		store.Message{Role: "user", Text: userText, HasImage: strings.TrimSpace(req.Image) != ""},
		store.Message{Role: "bot", Text: reply},
	)
	if err != nil {
		log.Printf("[chat] save history for %s: %v", host, err)
	}
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	filename, audio, err := readAudio(r)
	settings := s.Settings()
	if err != nil {
		log.Printf("[voice] reading audio: %v", err)
		s.writeJSON(w, http.StatusBadRequest, assistant.Result{
			Kind:    assistant.KindError,
			Code:    assistant.CodeTranscribeError,
			Message: i18n.T(settings.UILang, "errors.noAudio", nil),
			Detail:  err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 180*time.Second)
	defer cancel()
	res := s.assistant.Transcribe(ctx, settings, s.cfg.STTModel, filename, audio)
	s.writeJSON(w, http.StatusOK, res)
}

// readAudio accepts either a multipart "file" field or a JSON body carrying a data URL.
func readAudio(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return "", nil, err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, errors.New("audio file is required (field 'file')")
		}
		defer file.Close()
		b, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
		if err != nil {
			return "", nil, err
		}
		return header.Filename, b, nil
	}

	var req types.TranscribeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAudioBytes*2)).Decode(&req); err != nil {
		return "", nil, errors.New("invalid JSON body")
	}
	mime, b, err := llm.DecodeDataURL(req.DataURL)
	if err != nil {
		return "", nil, err
	}
	return "audio" + llm.ExtensionFor(mime), b, nil
}

func historyEntries(in []types.HistoryEntry) []assistant.HistoryEntry {
	out := make([]assistant.HistoryEntry, 0, len(in))
	for _, h := range in {
		out = append(out, assistant.HistoryEntry{Role: h.Role, Text: h.Text})
	}
	return out
}

func storedEntries(in []store.Message) []assistant.HistoryEntry {
	out := make([]assistant.HistoryEntry, 0, len(in))
	for _, m := range in {
		if m.Thinking {
			continue
		}
		out = append(out, assistant.HistoryEntry{Role: m.Role, Text: m.Text})
	}
	return out
}
