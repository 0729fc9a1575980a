package inject

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// fakePage models a host document: the canvas shows up only on URLs accepted by
// canvasOn, optionally after a delay measured from the last navigation.
type fakePage struct {
	mu         sync.Mutex
	url        string
	canvasOn   func(url string) bool
	canvasSel  string
	mountAfter time.Duration
	navAt      time.Time
	navs       []string
	existsErr  error
}

func (p *fakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.existsErr != nil {
		return false, p.existsErr
	}
	if p.canvasOn == nil || !p.canvasOn(p.url) {
		return false, nil
	}
	if time.Since(p.navAt) < p.mountAfter {
		return false, nil
	}
	sel := p.canvasSel
	if sel == "" {
		sel = ".vue-flow"
	}
	return selector == sel, nil
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.navAt = time.Now()
	p.navs = append(p.navs, url)
	return nil
}

func (p *fakePage) navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navs...)
}

type memPending struct {
	mu    sync.Mutex
	recs  map[string]PendingInjection
	saves int
}

func newMemPending() *memPending { return &memPending{recs: map[string]PendingInjection{}} }

func (m *memPending) Pending(_ context.Context, host string) (*PendingInjection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[host]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memPending) SavePending(_ context.Context, host string, p PendingInjection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[host] = p
	m.saves++
	return nil
}

func (m *memPending) ClearPending(_ context.Context, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, host)
	return nil
}

func (m *memPending) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

type dispatchCall struct {
	Kind     string
	Scope    Scope
	Selector string
	Event    string
	Text     string
}

type fakeDispatcher struct {
	mu          sync.Mutex
	calls       []dispatchCall
	pasteErr    map[Scope]error
	pasteAccept map[Scope]bool
	centerErr   error
	dragErr     error
}

func (d *fakeDispatcher) DispatchPaste(_ context.Context, scope Scope, selector string, payload Payload) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{Kind: "paste", Scope: scope, Selector: selector, Text: payload[0].Data})
	if err := d.pasteErr[scope]; err != nil {
		return false, err
	}
	if d.pasteAccept == nil {
		return true, nil
	}
	return d.pasteAccept[scope], nil
}

func (d *fakeDispatcher) Center(context.Context, string) (Point, error) {
	if d.centerErr != nil {
		return Point{}, d.centerErr
	}
	return Point{X: 320, Y: 240}, nil
}

func (d *fakeDispatcher) DispatchDrag(_ context.Context, selector, eventType string, _ Point, payload Payload) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{Kind: "drag", Selector: selector, Event: eventType, Text: payload[0].Data})
	return d.dragErr == nil, d.dragErr
}

func (d *fakeDispatcher) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.calls {
		if c.Kind == "drag" {
			out = append(out, c.Event)
			continue
		}
		out = append(out, "paste@"+string(c.Scope))
	}
	return out
}

// recordingPort is a DeliveryPort double that logs its name into a shared order slice.
type recordingPort struct {
	name  string
	ok    bool
	order *[]string
	texts []string
}

func (r *recordingPort) Name() string { return r.name }

func (r *recordingPort) Deliver(_ context.Context, text string, _ *CanvasTarget) bool {
	*r.order = append(*r.order, r.name)
	r.texts = append(r.texts, text)
	return r.ok
}

var errBoom = errors.New("boom")

func editorOnly(url string) bool { return strings.Contains(url, "workflow") }
