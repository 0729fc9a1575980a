package server

import (
	"encoding/json"
	"fmt"
	"log"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"n8n-assist-backend/internal/assistant"
	"n8n-assist-backend/internal/config"
	"n8n-assist-backend/internal/llm"
	"n8n-assist-backend/internal/store"
	"n8n-assist-backend/internal/types"
)

type Server struct {
	router    *chi.Mux
	cfg       config.Config
	settings  atomic.Pointer[config.Settings]
	assistant *assistant.Assistant
	store     store.Store
	limiter   *clientLimiter
}

func NewServer(cfg config.Config) (*Server, error) {
	spec, err := assistant.LoadPromptSpec(cfg.PromptFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt spec: %w", err)
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return newServer(cfg, st, assistant.New(spec, llm.NewClient(nil))), nil
}

func newServer(cfg config.Config, st store.Store, a *assistant.Assistant) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", "X-Client-Id"},
		ExposedHeaders:   []string{"X-Client-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:    r,
		cfg:       cfg,
		assistant: a,
		store:     st,
		limiter:   newClientLimiter(cfg.ChatRatePerMin),
	}
	s.SetSettings(cfg.Settings)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/settings", s.handleSettings)
	s.router.With(s.limiter.middleware).Post("/api/chat", s.handleChat)
	s.router.With(s.limiter.middleware).Post("/api/transcribe", s.handleTranscribe)

	s.router.Get("/api/sessions/{host}", s.handleGetSession)
	s.router.Put("/api/sessions/{host}", s.handlePutSession)
	s.router.Delete("/api/sessions/{host}", s.handleDeleteSession)
	s.router.Get("/api/pending/{host}", s.handleGetPending)
	s.router.Put("/api/pending/{host}", s.handlePutPending)
	s.router.Delete("/api/pending/{host}", s.handleDeletePending)
	s.router.Get("/api/activation/{host}", s.handleGetActivation)
	s.router.Put("/api/activation/{host}", s.handlePutActivation)
	s.router.Get("/api/sites/match", s.handleSiteMatch)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) Close() error { return s.store.Close() }

// SetSettings swaps the preferences used by subsequent requests.
func (s *Server) SetSettings(v config.Settings) {
	s.settings.Store(&v)
}

func (s *Server) Settings() config.Settings {
	return *s.settings.Load()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	cur := s.Settings()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"settings":  cur,
		"hasApiKey": cur.HasAPIKey(),
		"models":    slices.Sorted(maps.Keys(s.assistant.Spec().Models)),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func hostParam(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(chi.URLParam(r, "host")))
}
