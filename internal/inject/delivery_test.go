package inject

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

var canvas = &CanvasTarget{Probe: "vue-flow", Selector: ".vue-flow"}

func TestPasteStopsAtFirstAcceptedScope(t *testing.T) {
	d := &fakeDispatcher{}
	ok := (&PasteDelivery{Dispatcher: d}).Deliver(context.Background(), `{"a":1}`, canvas)
	require.True(t, ok)
	require.Equal(t, []string{"paste@target"}, d.kinds())
	require.Equal(t, ".vue-flow", d.calls[0].Selector)
}

func TestPasteEscalatesScopes(t *testing.T) {
	d := &fakeDispatcher{
		pasteErr:    map[Scope]error{ScopeTarget: errBoom},
		pasteAccept: map[Scope]bool{ScopeDocument: false, ScopeWindow: true},
	}
	ok := (&PasteDelivery{Dispatcher: d}).Deliver(context.Background(), `{}`, canvas)
	require.True(t, ok)
	require.Equal(t, []string{"paste@target", "paste@document", "paste@window"}, d.kinds())
}

func TestPasteWithoutTargetUsesDocumentRoot(t *testing.T) {
	d := &fakeDispatcher{}
	require.True(t, (&PasteDelivery{Dispatcher: d}).Deliver(context.Background(), `{}`, nil))
	require.Equal(t, "", d.calls[0].Selector)
}

func TestPasteFailsWhenNothingDispatched(t *testing.T) {
	d := &fakeDispatcher{pasteErr: map[Scope]error{ScopeTarget: errBoom, ScopeDocument: errBoom, ScopeWindow: errBoom}}
	require.False(t, (&PasteDelivery{Dispatcher: d}).Deliver(context.Background(), `{}`, canvas))
}

func TestDropSequence(t *testing.T) {
	d := &fakeDispatcher{}
	require.True(t, (&DropDelivery{Dispatcher: d}).Deliver(context.Background(), `{"n":1}`, canvas))
	require.Equal(t, []string{"dragenter", "dragover", "drop"}, d.kinds())
	require.Equal(t, `{"n":1}`, d.calls[2].Text)
}

func TestDropNeedsTarget(t *testing.T) {
	d := &fakeDispatcher{}
	require.False(t, (&DropDelivery{Dispatcher: d}).Deliver(context.Background(), `{}`, nil))
	require.Empty(t, d.calls)

	d.centerErr = errBoom
	require.False(t, (&DropDelivery{Dispatcher: d}).Deliver(context.Background(), `{}`, canvas))
}

func TestDropAbortsOnDispatchError(t *testing.T) {
	d := &fakeDispatcher{dragErr: errBoom}
	require.False(t, (&DropDelivery{Dispatcher: d}).Deliver(context.Background(), `{}`, canvas))
	require.Equal(t, []string{"dragenter"}, d.kinds())
}

func TestStrategiesOrder(t *testing.T) {
	s := Strategies(&fakeDispatcher{}, 0)
	require.Len(t, s, 2)
	require.Equal(t, "paste", s[0].Name())
	require.Equal(t, "drop", s[1].Name())
}

func TestDeliverCompactsAndFallsThrough(t *testing.T) {
	var order []string
	paste := &recordingPort{name: "paste", order: &order}
	drop := &recordingPort{name: "drop", ok: true, order: &order}

	name, ok := deliver(context.Background(), []DeliveryPort{paste, drop}, json.RawMessage("{\n  \"name\": \"x\"\n}"), canvas)
	require.True(t, ok)
	require.Equal(t, "drop", name)
	require.Equal(t, []string{"paste", "drop"}, order)
	require.Equal(t, `{"name":"x"}`, drop.texts[0])
}

func TestNewPayloadAliases(t *testing.T) {
	p := NewPayload("x")
	var types []string
	for _, it := range p {
		require.Equal(t, "x", it.Data)
		types = append(types, it.Type)
	}
	require.Equal(t, []string{"text/plain", "text", "application/json"}, types)
}
