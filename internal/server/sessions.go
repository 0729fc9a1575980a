package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"n8n-assist-backend/internal/inject"
	"n8n-assist-backend/internal/sites"
	"n8n-assist-backend/internal/store"
	"n8n-assist-backend/internal/types"
)

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	host := hostParam(r)
	msgs, err := s.store.History(r.Context(), host)
	if err != nil {
		log.Printf("[store] history for %s: %v", host, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	out := make([]types.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, types.HistoryEntry{Role: m.Role, Text: m.Text, HasImage: m.HasImage, Thinking: m.Thinking})
	}
	s.writeJSON(w, http.StatusOK, types.SessionResponse{Host: host, History: out})
}

func (s *Server) handlePutSession(w http.ResponseWriter, r *http.Request) {
	host := hostParam(r)
	var req types.SessionResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msgs := make([]store.Message, 0, len(req.History))
	for _, h := range req.History {
		msgs = append(msgs, store.Message{Role: h.Role, Text: h.Text, HasImage: h.HasImage, Thinking: h.Thinking})
	}
	if err := s.store.SetHistory(r.Context(), host, msgs); err != nil {
		log.Printf("[store] set history for %s: %v", host, err)
		s.writeError(w, http.StatusInternalServerError, "failed to save history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	host := hostParam(r)
	if err := s.store.ClearHistory(r.Context(), host); err != nil {
		log.Printf("[store] clear history for %s: %v", host, err)
		s.writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPending(w http.ResponseWriter, r *http.Request) {
	host := hostParam(r)
	p, err := s.store.Pending(r.Context(), host)
	if err != nil {
		log.Printf("[store] pending for %s: %v", host, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load pending injection")
		return
	}
	if p == nil {
		s.writeError(w, http.StatusNotFound, "no pending injection")
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handlePutPending stores the widget's pending record. A record without route
// candidates gets them generated from pageUrl, falling back to the host.
func (s *Server) handlePutPending(w http.ResponseWriter, r *http.Request) {
	host := hostParam(r)
	var req struct {
		inject.PendingInjection
		PageURL string `json:"pageUrl,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p := req.PendingInjection
	switch strings.TrimSpace(string(p.Workflow)) {
	case "", "null", "{}":
		s.writeError(w, http.StatusBadRequest, "workflow is required")
		return
	}
	if len(p.RouteCandidates) == 0 {
		page := req.PageURL
		if page == "" {
			page = "https://" + host + "/"
		}
		p.RouteCandidates = inject.RouteCandidates(page)
		p.RouteIndex = 0
	}
	if p.RouteIndex < 0 || p.RouteIndex >= len(p.RouteCandidates) {
		p.RouteIndex = 0
	}
	if err := s.store.SavePending(r.Context(), host, p); err != nil {
		log.Printf("[store] save pending for %s: %v", host, err)
		s.writeError(w, http.StatusInternalServerError, "failed to save pending injection")
		return
	}
	saved, err := s.store.Pending(r.Context(), host)
	if err != nil || saved == nil {
		s.writeJSON(w, http.StatusOK, p)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeletePending(w http.ResponseWriter, r *http.Request) {
	host := hostParam(r)
	if err := s.store.ClearPending(r.Context(), host); err != nil {
		log.Printf("[store] clear pending for %s: %v", host, err)
		s.writeError(w, http.StatusInternalServerError, "failed to clear pending injection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetActivation(w http.ResponseWriter, r *http.Request) {
	host := hostParam(r)
	resp, err := s.activation(r, host, "https://"+host+"/")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load activation")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutActivation(w http.ResponseWriter, r *http.Request) {
	host := hostParam(r)
	var req types.ActivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.store.SetActivation(r.Context(), host, req.Enabled); err != nil {
		log.Printf("[store] set activation for %s: %v", host, err)
		s.writeError(w, http.StatusInternalServerError, "failed to save activation")
		return
	}
	resp, err := s.activation(r, host, "https://"+host+"/")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load activation")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSiteMatch(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	act, err := s.activation(r, inject.HostKey(raw), raw)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load activation")
		return
	}
	s.writeJSON(w, http.StatusOK, types.SiteMatchResponse{URL: raw, Matched: act.Matched, Enabled: act.Enabled, Active: act.Active})
}

func (s *Server) activation(r *http.Request, host, pageURL string) (types.ActivationResponse, error) {
	enabled, _, err := s.store.Activation(r.Context(), host)
	if err != nil {
		log.Printf("[store] activation for %s: %v", host, err)
		return types.ActivationResponse{}, err
	}
	matched := sites.Match(pageURL, s.Settings().AllowedSites)
	return types.ActivationResponse{
		Host:    host,
		Enabled: enabled,
		Matched: matched,
		Active:  sites.Active(pageURL, s.Settings().AllowedSites, enabled),
	}, nil
}
