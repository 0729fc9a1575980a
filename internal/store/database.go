package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"n8n-assist-backend/internal/db"
	"n8n-assist-backend/internal/inject"
)

// DatabaseStore keeps site state in SQL tables. Queries are written to run unchanged
// on PostgreSQL and SQLite.
type DatabaseStore struct {
	db          *db.DB
	maxMessages int
}

func NewDatabaseStore(database *db.DB, maxMessages int) *DatabaseStore {
	return &DatabaseStore{db: database, maxMessages: maxMessages}
}

func (ds *DatabaseStore) History(ctx context.Context, host string) ([]Message, error) {
	var raw string
	err := ds.db.QueryRowContext(ctx, `SELECT entries FROM chat_history WHERE host = $1`, host).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return msgs, nil
}

func (ds *DatabaseStore) SetHistory(ctx context.Context, host string, msgs []Message) error {
	msgs = trim(msgs, ds.maxMessages)
	if len(msgs) == 0 {
		return ds.ClearHistory(ctx, host)
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO chat_history (host, entries, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (host)
		DO UPDATE SET
			entries = excluded.entries,
			updated_at = excluded.updated_at
	`
	if _, err := ds.db.ExecContext(ctx, query, host, string(b), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// AppendHistory is a read-modify-write; concurrent appends for one host may lose a line.
func (ds *DatabaseStore) AppendHistory(ctx context.Context, host string, msgs ...Message) error {
	existing, err := ds.History(ctx, host)
	if err != nil {
		return err
	}
	return ds.SetHistory(ctx, host, append(existing, msgs...))
}

func (ds *DatabaseStore) ClearHistory(ctx context.Context, host string) error {
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM chat_history WHERE host = $1`, host); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

func (ds *DatabaseStore) Pending(ctx context.Context, host string) (*inject.PendingInjection, error) {
	var raw string
	err := ds.db.QueryRowContext(ctx, `SELECT record FROM pending_injections WHERE host = $1`, host).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending injection: %w", err)
	}
	var p inject.PendingInjection
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode pending injection: %w", err)
	}
	return &p, nil
}

func (ds *DatabaseStore) SavePending(ctx context.Context, host string, p inject.PendingInjection) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO pending_injections (host, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (host)
		DO UPDATE SET
			record = excluded.record,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`
	if _, err := ds.db.ExecContext(ctx, query, host, string(b), millis(p.CreatedAt), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save pending injection: %w", err)
	}
	return nil
}

func (ds *DatabaseStore) ClearPending(ctx context.Context, host string) error {
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM pending_injections WHERE host = $1`, host); err != nil {
		return fmt.Errorf("failed to delete pending injection: %w", err)
	}
	return nil
}

func (ds *DatabaseStore) Activation(ctx context.Context, host string) (bool, bool, error) {
	var enabled int
	err := ds.db.QueryRowContext(ctx, `SELECT enabled FROM site_activation WHERE host = $1`, host).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to get activation: %w", err)
	}
	return enabled != 0, true, nil
}

func (ds *DatabaseStore) SetActivation(ctx context.Context, host string, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	query := `
		INSERT INTO site_activation (host, enabled, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (host)
		DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`
	if _, err := ds.db.ExecContext(ctx, query, host, v, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save activation: %w", err)
	}
	return nil
}

func (ds *DatabaseStore) Close() error {
	return ds.db.Close()
}
