// Package inject places a workflow document onto a host editor's canvas without the
// host's cooperation. When no canvas exists yet it persists a pending record, walks a
// list of candidate "new workflow" routes and finishes the job once a canvas shows up,
// re-reading the persisted record on every resumption because in-memory state does
// not survive navigation.
package inject

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"
)

// Outcome is the tri-state result of an injection attempt, plus Idle for resumptions
// that found nothing to do.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"
	OutcomeInjected  Outcome = "injected"
	OutcomeScheduled Outcome = "scheduled"
	OutcomeFailed    Outcome = "failed"
)

var (
	ErrEmptyWorkflow   = errors.New("workflow document is empty")
	ErrInjectionFailed = errors.New("injection failed")
)

// PendingInjection is the durable record of a workflow waiting for a canvas.
// RouteIndex is the candidate most recently navigated to; Attempts counts navigations.
type PendingInjection struct {
	Workflow        json.RawMessage `json:"workflow"`
	CreatedAt       time.Time       `json:"createdAt"`
	RouteIndex      int             `json:"routeIndex"`
	RouteCandidates []string        `json:"routeCandidates"`
	Attempts        int             `json:"attempts"`
}

// Page is the host document as far as the state machine cares.
type Page interface {
	URL(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Navigate(ctx context.Context, url string) error
}

// PendingStore persists at most one PendingInjection per host. Saving overwrites.
type PendingStore interface {
	Pending(ctx context.Context, host string) (*PendingInjection, error)
	SavePending(ctx context.Context, host string, p PendingInjection) error
	ClearPending(ctx context.Context, host string) error
}

// CanvasTarget is a transient reference to the canvas; it is re-resolved by selector
// on every use because the host may recreate the element.
type CanvasTarget struct {
	Probe    string
	Selector string
}

// HostKey derives the storage key for a page URL: its host, or "global" when the URL
// has none.
func HostKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "global"
	}
	return u.Host
}

func hasDocument(doc json.RawMessage) bool {
	switch strings.TrimSpace(string(doc)) {
	case "", "null", "{}":
		return false
	}
	return true
}
