package inject

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	DefaultPollTimeout  = 8 * time.Second
	DefaultPollInterval = 150 * time.Millisecond
	DefaultSettleDelay  = 300 * time.Millisecond
	DefaultMaxCycles    = 3
)

// Options tunes an Injector. Unset polling values fall back to the defaults above;
// MaxCycles or MaxAge <= 0 disables that bound.
type Options struct {
	Probes       []Probe
	PollTimeout  time.Duration
	PollInterval time.Duration
	// MaxCycles caps navigations at MaxCycles full passes over the candidate list.
	MaxCycles int
	// MaxAge abandons records older than this.
	MaxAge time.Duration
	Now    func() time.Time
}

// Injector drives a workflow document from the chat result onto the host canvas.
type Injector struct {
	page       Page
	store      PendingStore
	strategies []DeliveryPort
	opts       Options

	mu sync.Mutex
}

func NewInjector(page Page, store PendingStore, strategies []DeliveryPort, opts Options) *Injector {
	if len(opts.Probes) == 0 {
		opts.Probes = DefaultProbes
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Injector{page: page, store: store, strategies: strategies, opts: opts}
}

// EnsureInjected delivers workflow right away when the page shows a canvas. Otherwise
// it overwrites the origin's pending record, navigates to the first route candidate
// and reports OutcomeScheduled; Resume finishes the job after the navigation lands.
func (in *Injector) EnsureInjected(ctx context.Context, workflow json.RawMessage) (Outcome, error) {
	if !hasDocument(workflow) {
		return OutcomeFailed, ErrEmptyWorkflow
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	current, err := in.page.URL(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read page url: %w", err)
	}
	host := HostKey(current)

	target, err := FindCanvas(ctx, in.page, in.opts.Probes)
	if err != nil {
		log.Printf("[inject] probing %s: %v", current, err)
	}
	if target != nil {
		name, ok := deliver(ctx, in.strategies, workflow, target)
		if !ok {
			return OutcomeFailed, ErrInjectionFailed
		}
		log.Printf("[inject] delivered via %s on %s (probe %s)", name, host, target.Probe)
		return OutcomeInjected, nil
	}

	candidates := RouteCandidates(current)
	rec := PendingInjection{
		Workflow:        append(json.RawMessage(nil), workflow...),
		CreatedAt:       in.opts.Now(),
		RouteIndex:      0,
		RouteCandidates: candidates,
		Attempts:        1,
	}
	if err := in.store.SavePending(ctx, host, rec); err != nil {
		return OutcomeFailed, fmt.Errorf("save pending injection: %w", err)
	}
	log.Printf("[inject] no canvas on %s, scheduled via %s", host, candidates[0])
	if err := in.page.Navigate(ctx, candidates[0]); err != nil {
		return OutcomeScheduled, fmt.Errorf("navigate to %s: %w", candidates[0], err)
	}
	return OutcomeScheduled, nil
}

// Resume continues a pending injection for the page's origin. It always re-reads the
// persisted record. It returns OutcomeIdle when nothing is pending, OutcomeInjected
// once delivered, OutcomeScheduled after navigating to the next candidate and
// OutcomeFailed when the record was abandoned or every strategy declined.
func (in *Injector) Resume(ctx context.Context) (Outcome, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	current, err := in.page.URL(ctx)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("read page url: %w", err)
	}
	host := HostKey(current)

	rec, err := in.store.Pending(ctx, host)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("load pending injection: %w", err)
	}
	if rec == nil {
		return OutcomeIdle, nil
	}
	if in.expired(rec) {
		log.Printf("[inject] pending injection for %s is older than %s, dropping it", host, in.opts.MaxAge)
		if err := in.store.ClearPending(ctx, host); err != nil {
			return OutcomeFailed, fmt.Errorf("clear pending injection: %w", err)
		}
		return OutcomeFailed, ErrInjectionFailed
	}
	if len(rec.RouteCandidates) == 0 {
		rec.RouteCandidates = RouteCandidates(current)
		// nothing navigated yet: the next advance lands on candidate 0
		rec.RouteIndex = -1
	} else {
		rec.RouteIndex = min(max(rec.RouteIndex, 0), len(rec.RouteCandidates)-1)
	}

	if LooksLikeEditor(current) {
		target, err := in.waitForCanvas(ctx)
		if err != nil {
			return OutcomeIdle, err
		}
		if target != nil {
			name, ok := deliver(ctx, in.strategies, rec.Workflow, target)
			if !ok {
				log.Printf("[inject] every strategy declined on %s", current)
				return OutcomeFailed, ErrInjectionFailed
			}
			if err := in.store.ClearPending(ctx, host); err != nil {
				return OutcomeInjected, fmt.Errorf("clear pending injection: %w", err)
			}
			log.Printf("[inject] resumed and delivered via %s on %s", name, host)
			return OutcomeInjected, nil
		}
		log.Printf("[inject] no canvas on %s within %s", current, in.opts.PollTimeout)
	}
	return in.advance(ctx, host, rec)
}

// Cancel drops the pending record for the page's origin.
func (in *Injector) Cancel(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	current, err := in.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("read page url: %w", err)
	}
	return in.store.ClearPending(ctx, HostKey(current))
}

func (in *Injector) advance(ctx context.Context, host string, rec *PendingInjection) (Outcome, error) {
	n := len(rec.RouteCandidates)
	if in.opts.MaxCycles > 0 && rec.Attempts >= in.opts.MaxCycles*n {
		log.Printf("[inject] giving up on %s after %d navigations", host, rec.Attempts)
		if err := in.store.ClearPending(ctx, host); err != nil {
			return OutcomeFailed, fmt.Errorf("clear pending injection: %w", err)
		}
		return OutcomeFailed, ErrInjectionFailed
	}
	rec.RouteIndex = (rec.RouteIndex + 1) % n
	rec.Attempts++
	if err := in.store.SavePending(ctx, host, *rec); err != nil {
		return OutcomeFailed, fmt.Errorf("save pending injection: %w", err)
	}
	next := rec.RouteCandidates[rec.RouteIndex]
	log.Printf("[inject] trying route %d/%d on %s: %s", rec.RouteIndex+1, n, host, next)
	if err := in.page.Navigate(ctx, next); err != nil {
		return OutcomeScheduled, fmt.Errorf("navigate to %s: %w", next, err)
	}
	return OutcomeScheduled, nil
}

// waitForCanvas polls until a probe resolves or PollTimeout elapses. Probe errors are
// treated as "not yet"; only context cancellation is returned.
func (in *Injector) waitForCanvas(ctx context.Context) (*CanvasTarget, error) {
	deadline := time.NewTimer(in.opts.PollTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(in.opts.PollInterval)
	defer tick.Stop()
	for {
		if target, _ := FindCanvas(ctx, in.page, in.opts.Probes); target != nil {
			return target, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-tick.C:
		}
	}
}

func (in *Injector) expired(rec *PendingInjection) bool {
	if in.opts.MaxAge <= 0 || rec.CreatedAt.IsZero() {
		return false
	}
	return in.opts.Now().Sub(rec.CreatedAt) > in.opts.MaxAge
}
