// Package browser drives a Chrome tab over the DevTools protocol and exposes it as the
// page, dispatcher and navigation source the injector works against.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"n8n-assist-backend/internal/inject"
)

type Options struct {
	// RemoteURL attaches to a running browser (ws:// or http:// DevTools endpoint)
	// instead of launching one.
	RemoteURL string
	Headless  bool
	// NavigateWait bounds how long Navigate waits for the location to change.
	NavigateWait time.Duration
}

// PageContext is the editor state sent along with a chat turn.
type PageContext struct {
	URL    string   `json:"url"`
	Nodes  []string `json:"nodes"`
	Errors []string `json:"errors"`
}

type Tab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	navWait time.Duration

	mu     sync.Mutex
	subs   []chan inject.NavigationEvent
	closed bool
}

var (
	_ inject.Page             = (*Tab)(nil)
	_ inject.Dispatcher       = (*Tab)(nil)
	_ inject.NavigationSource = (*Tab)(nil)
)

// Open launches or attaches to a browser and opens a tab. Close releases both.
func Open(parent context.Context, opts Options) (*Tab, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", opts.Headless))
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, allocOpts...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	wait := opts.NavigateWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	t := &Tab{
		ctx:     tabCtx,
		navWait: wait,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}
	chromedp.ListenTarget(tabCtx, t.onEvent)
	return t, nil
}

func (t *Tab) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		for _, ch := range t.subs {
			close(ch)
		}
		t.subs = nil
	}
	t.mu.Unlock()
	t.cancel()
}

// run executes actions in the tab, stopping early when ctx ends.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (t *Tab) eval(ctx context.Context, res any, format string, args ...any) error {
	js, err := script(format, args...)
	if err != nil {
		return err
	}
	return t.run(ctx, chromedp.Evaluate(js, res))
}

// script fills format with each argument encoded as a JSON literal.
func script(format string, args ...any) (string, error) {
	encoded := make([]any, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf(format, encoded...), nil
}

func (t *Tab) URL(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (t *Tab) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := t.eval(ctx, &ok, existsJS, selector)
	return ok, err
}

// Navigate assigns location.href the way in-page code would, then waits until the
// location moves so a following URL read sees the new page.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	before, err := t.URL(ctx)
	if err != nil {
		return err
	}
	var ok bool
	if err := t.eval(ctx, &ok, navigateJS, url); err != nil {
		return err
	}
	if before == url {
		return nil
	}
	deadline := time.Now().Add(t.navWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		cur, err := t.URL(ctx)
		if err == nil && cur != before {
			return nil
		}
	}
	log.Printf("[browser] location still %s after navigating to %s", before, url)
	return nil
}

// Goto performs a full navigation and waits for the load event.
func (t *Tab) Goto(ctx context.Context, url string) error {
	return t.run(ctx, chromedp.Navigate(url))
}

func (t *Tab) DispatchPaste(ctx context.Context, scope inject.Scope, selector string, payload inject.Payload) (bool, error) {
	var accepted bool
	err := t.eval(ctx, &accepted, pasteJS, string(scope), selector, payload)
	return accepted, err
}

func (t *Tab) Center(ctx context.Context, selector string) (inject.Point, error) {
	var p inject.Point
	err := t.eval(ctx, &p, centerJS, selector)
	return p, err
}

func (t *Tab) DispatchDrag(ctx context.Context, selector, eventType string, at inject.Point, payload inject.Payload) (bool, error) {
	var accepted bool
	err := t.eval(ctx, &accepted, dragJS, selector, eventType, at.X, at.Y, payload)
	return accepted, err
}

// CollectContext reads the page URL, visible node titles and recent error banners.
func (t *Tab) CollectContext(ctx context.Context) (PageContext, error) {
	var pc PageContext
	err := t.run(ctx, chromedp.Evaluate(contextJS, &pc))
	return pc, err
}

// Navigations reports main-frame loads and same-document route changes until the tab
// closes.
func (t *Tab) Navigations(ctx context.Context) (<-chan inject.NavigationEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("tab closed")
	}
	ch := make(chan inject.NavigationEvent, 16)
	t.subs = append(t.subs, ch)
	context.AfterFunc(ctx, func() { t.unsubscribe(ch) })
	return ch, nil
}

func (t *Tab) unsubscribe(ch chan inject.NavigationEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.subs {
		if c == ch {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (t *Tab) onEvent(ev any) {
	var nav inject.NavigationEvent
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		nav = inject.NavigationEvent{URL: e.Frame.URL + e.Frame.URLFragment}
	case *page.EventNavigatedWithinDocument:
		nav = inject.NavigationEvent{URL: e.URL, SameDocument: true}
	default:
		return
	}
	t.publish(nav)
}

func (t *Tab) publish(nav inject.NavigationEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- nav:
		default:
		}
	}
}
