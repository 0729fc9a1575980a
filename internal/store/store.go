// Package store keeps per-site assistant state: the chat history the widget restores
// after a reload, the pending workflow injection and the manual activation flag.
// Every record is keyed by the site's host and writes are last-writer-wins.
package store

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"n8n-assist-backend/internal/config"
	"n8n-assist-backend/internal/db"
	"n8n-assist-backend/internal/inject"
)

// Message is one line of a site's chat history.
type Message struct {
	Role     string `json:"role"`
	Text     string `json:"text"`
	HasImage bool   `json:"hasImage,omitempty"`
	Thinking bool   `json:"thinking,omitempty"`
}

type Store interface {
	History(ctx context.Context, host string) ([]Message, error)
	AppendHistory(ctx context.Context, host string, msgs ...Message) error
	SetHistory(ctx context.Context, host string, msgs []Message) error
	ClearHistory(ctx context.Context, host string) error

	inject.PendingStore

	// Activation reports the manual activation flag and whether one was ever set.
	Activation(ctx context.Context, host string) (enabled bool, set bool, err error)
	SetActivation(ctx context.Context, host string, enabled bool) error

	Close() error
}

// Open picks the backing store from configuration: a database when DatabaseURL is
// set, JSON files when DataDir is set, memory otherwise.
func Open(cfg config.Config) (Store, error) {
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(); err != nil {
			database.Close()
			return nil, err
		}
		log.Printf("[store] using %s database", database.Driver)
		return NewDatabaseStore(database, cfg.MaxHistory), nil
	}
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "sites")
		log.Printf("[store] using files under %s", dir)
		return NewFileStore(dir, cfg.MaxHistory), nil
	}
	log.Println("[store] using in-memory store")
	return NewMemoryStore(cfg.MaxHistory, cfg.Inject.PendingMaxAge), nil
}

func trim(msgs []Message, max int) []Message {
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	return msgs
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}
