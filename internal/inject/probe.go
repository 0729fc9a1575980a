package inject

import (
	"context"
	"net/url"
	"strings"
)

// Probe is one canvas heuristic: a selector that, when it resolves, marks the canvas.
type Probe struct {
	Name     string
	Selector string
}

// DefaultProbes are ordered from specific test hooks to generic tag heuristics.
var DefaultProbes = []Probe{
	{Name: "test-id", Selector: `[data-test-id="canvas"]`},
	{Name: "test-id-prefix", Selector: `[data-test-id*="canvas"]`},
	{Name: "workflow-canvas", Selector: ".workflow-canvas"},
	{Name: "vue-flow", Selector: ".vue-flow"},
	{Name: "canvas-class", Selector: ".canvas"},
	{Name: "svg", Selector: "svg"},
}

// Prober answers whether a selector resolves in the current document.
type Prober interface {
	Exists(ctx context.Context, selector string) (bool, error)
}

// FindCanvas tries probes in order and returns the first that resolves. A probe that
// errors is skipped; the last error is returned only when nothing matched.
func FindCanvas(ctx context.Context, p Prober, probes []Probe) (*CanvasTarget, error) {
	if len(probes) == 0 {
		probes = DefaultProbes
	}
	var lastErr error
	for _, probe := range probes {
		ok, err := p.Exists(ctx, probe.Selector)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return &CanvasTarget{Probe: probe.Name, Selector: probe.Selector}, nil
		}
	}
	return nil, lastErr
}

// LooksLikeEditor reports whether a URL's path or fragment points at a workflow view.
func LooksLikeEditor(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.Contains(raw, "workflow")
	}
	return strings.Contains(u.Path+"#"+u.Fragment, "workflow")
}
