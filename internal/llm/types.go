package llm

import (
	"errors"
	"fmt"
	"strings"
)

// APIShape selects which upstream request/response format a model speaks.
type APIShape string

const (
	ShapeChat      APIShape = "chat"
	ShapeResponses APIShape = "responses"
)

// ParseShape maps a configured shape name onto an APIShape. Unknown names fall back to chat.
func ParseShape(s string) APIShape {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ShapeResponses):
		return ShapeResponses
	default:
		return ShapeChat
	}
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one ordered content element of a turn: either text or an image reference
// (an http(s) URL or a data: URL).
type Part struct {
	Kind     PartKind `json:"kind"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

func TextPart(s string) Part  { return Part{Kind: PartText, Text: s} }
func ImagePart(u string) Part { return Part{Kind: PartImage, ImageURL: u} }

type Turn struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// NormalizedRequest is produced once per call and never mutated afterwards.
type NormalizedRequest struct {
	Shape              APIShape
	Model              string
	Temperature        float32
	SystemInstructions string
	Turns              []Turn
}

// Endpoint is where and as whom a request is sent.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

var ErrEmptyResponse = errors.New("llm empty response")

// UpstreamError carries the status and raw body of a non-2xx upstream reply.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// BuildRequest assembles the normalized request. Turns are copied so later edits to the
// caller's slice cannot leak into a request that is already in flight.
func BuildRequest(turns []Turn, systemPrompt string, shape APIShape, model string, temperature float32) NormalizedRequest {
	copied := make([]Turn, 0, len(turns))
	for _, t := range turns {
		copied = append(copied, Turn{Role: t.Role, Parts: append([]Part(nil), t.Parts...)})
	}
	if shape != ShapeResponses {
		shape = ShapeChat
	}
	return NormalizedRequest{
		Shape:              shape,
		Model:              model,
		Temperature:        temperature,
		SystemInstructions: systemPrompt,
		Turns:              copied,
	}
}
