package inject

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"time"
)

// DataItem is one MIME-typed entry of a synthetic clipboard or drag payload.
type DataItem struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type Payload []DataItem

// NewPayload carries text under every alias a host might read it from.
func NewPayload(text string) Payload {
	return Payload{
		{Type: "text/plain", Data: text},
		{Type: "text", Data: text},
		{Type: "application/json", Data: text},
	}
}

// Scope is where a synthetic event is dispatched.
type Scope string

const (
	ScopeTarget   Scope = "target"
	ScopeDocument Scope = "document"
	ScopeWindow   Scope = "window"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dispatcher fires synthetic DOM events. DispatchPaste and DispatchDrag return whether
// the event was accepted (not cancelled); an error means it could not be dispatched.
// An empty selector targets the document body.
type Dispatcher interface {
	DispatchPaste(ctx context.Context, scope Scope, selector string, payload Payload) (bool, error)
	Center(ctx context.Context, selector string) (Point, error)
	DispatchDrag(ctx context.Context, selector, eventType string, at Point, payload Payload) (bool, error)
}

// DeliveryPort is one best-effort technique for handing a JSON document to the host.
// true means the delivery was dispatched, not that the host imported anything.
type DeliveryPort interface {
	Name() string
	Deliver(ctx context.Context, jsonText string, target *CanvasTarget) bool
}

// Strategies returns the delivery techniques in the order they are tried.
func Strategies(d Dispatcher, settle time.Duration) []DeliveryPort {
	return []DeliveryPort{
		&PasteDelivery{Dispatcher: d, Settle: settle},
		&DropDelivery{Dispatcher: d, Settle: settle},
	}
}

// PasteDelivery fires a paste event at the target, then the document, then the window,
// stopping at the first dispatch the page accepts.
type PasteDelivery struct {
	Dispatcher Dispatcher
	Settle     time.Duration
}

func (p *PasteDelivery) Name() string { return "paste" }

func (p *PasteDelivery) Deliver(ctx context.Context, jsonText string, target *CanvasTarget) bool {
	payload := NewPayload(jsonText)
	selector := ""
	if target != nil {
		selector = target.Selector
	}
	dispatched := false
	for _, scope := range []Scope{ScopeTarget, ScopeDocument, ScopeWindow} {
		accepted, err := p.Dispatcher.DispatchPaste(ctx, scope, selector, payload)
		if err != nil {
			log.Printf("[inject] paste at %s failed: %v", scope, err)
			continue
		}
		dispatched = true
		if accepted {
			break
		}
	}
	sleep(ctx, p.Settle)
	return dispatched
}

// DropDelivery replays dragenter, dragover and drop at the centre of the canvas. It
// needs a resolved target.
type DropDelivery struct {
	Dispatcher Dispatcher
	Settle     time.Duration
}

func (d *DropDelivery) Name() string { return "drop" }

func (d *DropDelivery) Deliver(ctx context.Context, jsonText string, target *CanvasTarget) bool {
	if target == nil {
		return false
	}
	at, err := d.Dispatcher.Center(ctx, target.Selector)
	if err != nil {
		log.Printf("[inject] drop target %s has no geometry: %v", target.Selector, err)
		return false
	}
	payload := NewPayload(jsonText)
	for _, typ := range []string{"dragenter", "dragover", "drop"} {
		if _, err := d.Dispatcher.DispatchDrag(ctx, target.Selector, typ, at, payload); err != nil {
			log.Printf("[inject] %s at %s failed: %v", typ, target.Selector, err)
			return false
		}
	}
	sleep(ctx, d.Settle)
	return true
}

// deliver serializes doc and runs strategies in order until one reports success.
func deliver(ctx context.Context, strategies []DeliveryPort, doc json.RawMessage, target *CanvasTarget) (string, bool) {
	var buf bytes.Buffer
	text := string(doc)
	if err := json.Compact(&buf, doc); err == nil {
		text = buf.String()
	}
	for _, s := range strategies {
		if s.Deliver(ctx, text, target) {
			return s.Name(), true
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
