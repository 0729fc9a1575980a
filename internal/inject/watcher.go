package inject

import (
	"context"
	"errors"
	"log"
	"time"
)

// NavigationEvent reports that the page moved, either by a full load or by in-app
// routing (history push, popstate, hashchange).
type NavigationEvent struct {
	URL          string
	SameDocument bool
}

// NavigationSource is an observer of page navigations. The channel closes when the
// source shuts down.
type NavigationSource interface {
	Navigations(ctx context.Context) (<-chan NavigationEvent, error)
}

// DefaultResumeDelays stagger resumptions after a navigation so a late canvas mount
// still gets caught.
var DefaultResumeDelays = []time.Duration{50 * time.Millisecond, 400 * time.Millisecond, time.Second}

// Watcher calls Resume whenever the page navigates until the pending injection
// reaches a terminal state.
type Watcher struct {
	Injector *Injector
	Delays   []time.Duration
	// PollEvery drives resumption when no NavigationSource is available.
	PollEvery time.Duration
	// ResumeOnStart runs a resumption before the first navigation event, the way a
	// fresh page load would.
	ResumeOnStart bool
}

func NewWatcher(in *Injector) *Watcher {
	return &Watcher{
		Injector:      in,
		Delays:        DefaultResumeDelays,
		PollEvery:     time.Second,
		ResumeOnStart: true,
	}
}

// Run blocks until a resumption returns Injected, Failed or Idle, or ctx ends. A nil
// source, or one that cannot subscribe, falls back to polling.
func (w *Watcher) Run(ctx context.Context, src NavigationSource) (Outcome, error) {
	var events <-chan NavigationEvent
	if src != nil {
		ch, err := src.Navigations(ctx)
		if err != nil {
			log.Printf("[inject] navigation events unavailable, polling instead: %v", err)
		} else {
			events = ch
		}
	}
	if events == nil {
		return w.poll(ctx, w.ResumeOnStart)
	}

	delays := w.Delays
	if len(delays) == 0 {
		delays = DefaultResumeDelays
	}
	fire := make(chan uint64, 8)
	var gen uint64
	var timers []*time.Timer
	arm := func() {
		for _, t := range timers {
			t.Stop()
		}
		timers = timers[:0]
		gen++
		g := gen
		for _, d := range delays {
			timers = append(timers, time.AfterFunc(d, func() {
				select {
				case fire <- g:
				default:
				}
			}))
		}
	}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	if w.ResumeOnStart {
		arm()
	}
	for {
		select {
		case <-ctx.Done():
			return OutcomeIdle, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				log.Printf("[inject] navigation source closed, polling instead")
				return w.poll(ctx, true)
			}
			log.Printf("[inject] navigated to %s (same document: %t)", ev.URL, ev.SameDocument)
			arm()
		case g := <-fire:
			if g != gen {
				continue
			}
			out, err := w.Injector.Resume(ctx)
			if done, res, rerr := terminal(out, err); done {
				return res, rerr
			}
			if out == OutcomeScheduled {
				// restart the stagger for the route just navigated to
				arm()
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context, resumeFirst bool) (Outcome, error) {
	every := w.PollEvery
	if every <= 0 {
		every = time.Second
	}
	tick := time.NewTicker(every)
	defer tick.Stop()
	if resumeFirst {
		out, err := w.Injector.Resume(ctx)
		if done, res, rerr := terminal(out, err); done {
			return res, rerr
		}
	}
	for {
		select {
		case <-ctx.Done():
			return OutcomeIdle, ctx.Err()
		case <-tick.C:
			out, err := w.Injector.Resume(ctx)
			if done, res, rerr := terminal(out, err); done {
				return res, rerr
			}
		}
	}
}

func terminal(out Outcome, err error) (bool, Outcome, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true, out, err
	}
	switch out {
	case OutcomeInjected, OutcomeFailed, OutcomeIdle:
		if err != nil && out == OutcomeIdle {
			// transient read failure, keep watching
			log.Printf("[inject] resume: %v", err)
			return false, out, err
		}
		return true, out, err
	}
	if err != nil {
		log.Printf("[inject] resume: %v", err)
	}
	return false, out, err
}
