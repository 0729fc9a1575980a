package types

import "encoding/json"

type HistoryEntry struct {
	Role     string `json:"role"`
	Text     string `json:"text"`
	HasImage bool   `json:"hasImage,omitempty"`
	Thinking bool   `json:"thinking,omitempty"`
}

// ChatRequest is one widget turn. Host defaults to the host of PageURL. When History
// is empty the server uses the stored history for the host.
type ChatRequest struct {
	Host    string          `json:"host,omitempty"`
	Text    string          `json:"text"`
	Image   string          `json:"image,omitempty"`
	PageURL string          `json:"pageUrl,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
	History []HistoryEntry  `json:"history,omitempty"`
	// Remember=false skips writing the turn to the stored history.
	Remember *bool `json:"remember,omitempty"`
}

type TranscribeRequest struct {
	DataURL string `json:"dataUrl"`
}

type SessionResponse struct {
	Host    string         `json:"host"`
	History []HistoryEntry `json:"history"`
}

type ActivationRequest struct {
	Enabled bool `json:"enabled"`
}

type ActivationResponse struct {
	Host    string `json:"host"`
	Enabled bool   `json:"enabled"`
	// Matched is whether the host is covered by the allowed-site patterns.
	Matched bool `json:"matched"`
	Active  bool `json:"active"`
}

type SiteMatchResponse struct {
	URL     string `json:"url"`
	Matched bool   `json:"matched"`
	Enabled bool   `json:"enabled"`
	Active  bool   `json:"active"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
