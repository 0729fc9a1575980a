package server

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// logRequests writes one line per request in the "[http]" log family.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("[http] %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// clientLimiter hands out one token bucket per client id. Buckets idle for longer
// than idleAfter are dropped on the next lookup.
type clientLimiter struct {
	mu        sync.Mutex
	perMinute int
	idleAfter time.Duration
	clients   map[string]*limiterEntry
}

func newClientLimiter(perMinute int) *clientLimiter {
	return &clientLimiter{
		perMinute: perMinute,
		idleAfter: 10 * time.Minute,
		clients:   make(map[string]*limiterEntry),
	}
}

func (c *clientLimiter) allow(id string) bool {
	if c.perMinute <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.clients {
		if now.Sub(e.seen) > c.idleAfter {
			delete(c.clients, k)
		}
	}
	e, ok := c.clients[id]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(float64(c.perMinute)/60), c.perMinute)}
		c.clients[id] = e
	}
	e.seen = now
	return e.lim.Allow()
}

func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rateKey(r)
		getOrCreateClientID(w, r)
		if !c.allow(key) {
			log.Printf("[http] rate limit hit for %s on %s", key, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateKey is the caller's client id, or its address when it has not got one yet.
// RemoteAddr is already rewritten by middleware.RealIP.
func rateKey(r *http.Request) string {
	if id := getClientID(r); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
