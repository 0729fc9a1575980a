package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName identifies the browser a widget request came from.
	CookieName = "n8n_assist_client"
	// CookieMaxAge is how long a client id is kept (30 days)
	CookieMaxAge = 30 * 24 * time.Hour
	// ClientIDHeader lets non-browser callers supply their own id.
	ClientIDHeader = "X-Client-Id"
)

// SetClientCookie sets an HTTP-only client id cookie
func SetClientCookie(w http.ResponseWriter, r *http.Request, clientID string) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    clientID,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	}
	http.SetCookie(w, cookie)
}

// GetClientCookie reads the client id from the cookie
func GetClientCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func getClientID(r *http.Request) string {
	if id, err := GetClientCookie(r); err == nil && id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(ClientIDHeader))
}

// getOrCreateClientID returns the caller's client id, minting one and setting the
// cookie when the request carries none.
func getOrCreateClientID(w http.ResponseWriter, r *http.Request) string {
	id := getClientID(r)
	if id == "" {
		id = uuid.NewString()
		SetClientCookie(w, r, id)
	}
	w.Header().Set(ClientIDHeader, id)
	return id
}
