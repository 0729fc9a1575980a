package llm

import (
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// zeroTemperature stands in for 0, which go-openai drops as an empty field and the
// upstream then replaces with its default of 1.
const zeroTemperature = math.SmallestNonzeroFloat32

// EncodeChat renders the chat-completions body. The system instructions become a
// leading system message and every turn keeps its role and part order.
func EncodeChat(req NormalizedRequest) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if strings.TrimSpace(req.SystemInstructions) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.SystemInstructions},
			},
		})
	}
	for _, t := range req.Turns {
		role := t.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		parts := make([]openai.ChatMessagePart, 0, len(t.Parts))
		for _, p := range t.Parts {
			switch p.Kind {
			case PartImage:
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: p.ImageURL},
				})
			default:
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
			}
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, MultiContent: parts})
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = zeroTemperature
	}
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: temperature,
		Messages:    msgs,
	}
}

// DecodeChat is the inverse of EncodeChat. A leading system message is lifted back into
// SystemInstructions.
func DecodeChat(body openai.ChatCompletionRequest) NormalizedRequest {
	out := NormalizedRequest{Shape: ShapeChat, Model: body.Model, Temperature: body.Temperature}
	if out.Temperature == zeroTemperature {
		out.Temperature = 0
	}
	msgs := body.Messages
	if len(msgs) > 0 && msgs[0].Role == openai.ChatMessageRoleSystem {
		out.SystemInstructions = chatMessageText(msgs[0])
		msgs = msgs[1:]
	}
	for _, m := range msgs {
		t := Turn{Role: m.Role}
		if len(m.MultiContent) == 0 && m.Content != "" {
			t.Parts = append(t.Parts, TextPart(m.Content))
		}
		for _, p := range m.MultiContent {
			if p.Type == openai.ChatMessagePartTypeImageURL && p.ImageURL != nil {
				t.Parts = append(t.Parts, ImagePart(p.ImageURL.URL))
				continue
			}
			t.Parts = append(t.Parts, TextPart(p.Text))
		}
		out.Turns = append(out.Turns, t)
	}
	return out
}

func chatMessageText(m openai.ChatCompletionMessage) string {
	if len(m.MultiContent) == 0 {
		return m.Content
	}
	texts := make([]string, 0, len(m.MultiContent))
	for _, p := range m.MultiContent {
		if p.Type == openai.ChatMessagePartTypeText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

const (
	responsesInputText  = "input_text"
	responsesOutputText = "output_text"
	responsesInputImage = "input_image"
)

// ResponsesRequest is the body of a responses-style call.
type ResponsesRequest struct {
	Model        string          `json:"model"`
	Instructions string          `json:"instructions,omitempty"`
	Input        []ResponsesItem `json:"input"`
}

type ResponsesItem struct {
	Role    string          `json:"role"`
	Content []ResponsesPart `json:"content"`
}

// ResponsesPart keeps Text as a pointer so an empty placeholder still serializes
// "text":"" while image parts carry no text key at all.
type ResponsesPart struct {
	Type     string  `json:"type"`
	Text     *string `json:"text,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

func textPart(typ, s string) ResponsesPart {
	return ResponsesPart{Type: typ, Text: &s}
}

// EncodeResponses renders the responses body. System turns are folded into
// Instructions; assistant parts are tagged as output, everything else as input.
func EncodeResponses(req NormalizedRequest) ResponsesRequest {
	var instructions []string
	if strings.TrimSpace(req.SystemInstructions) != "" {
		instructions = append(instructions, req.SystemInstructions)
	}
	items := make([]ResponsesItem, 0, len(req.Turns))
	for _, t := range req.Turns {
		role := t.Role
		if role == "" {
			role = RoleUser
		}
		if role == RoleSystem {
			for _, p := range t.Parts {
				if p.Kind == PartText {
					instructions = append(instructions, p.Text)
				}
			}
			continue
		}
		textType := responsesInputText
		if role == RoleAssistant {
			textType = responsesOutputText
		}
		content := make([]ResponsesPart, 0, len(t.Parts))
		for _, p := range t.Parts {
			if p.Kind == PartImage {
				content = append(content, ResponsesPart{Type: responsesInputImage, ImageURL: p.ImageURL})
				continue
			}
			content = append(content, textPart(textType, p.Text))
		}
		if len(content) == 0 {
			content = append(content, textPart(textType, ""))
		}
		items = append(items, ResponsesItem{Role: role, Content: content})
	}
	return ResponsesRequest{
		Model:        req.Model,
		Instructions: strings.Join(instructions, "\n"),
		Input:        items,
	}
}

// DecodeResponses is the inverse of EncodeResponses. A lone empty placeholder part is
// dropped so an empty turn comes back empty. System turns folded into Instructions are
// not reconstructed; their text survives in SystemInstructions.
func DecodeResponses(body ResponsesRequest) NormalizedRequest {
	out := NormalizedRequest{Shape: ShapeResponses, Model: body.Model, SystemInstructions: body.Instructions}
	for _, item := range body.Input {
		t := Turn{Role: item.Role}
		if isPlaceholder(item.Content) {
			out.Turns = append(out.Turns, t)
			continue
		}
		for _, p := range item.Content {
			switch p.Type {
			case responsesInputImage:
				t.Parts = append(t.Parts, ImagePart(p.ImageURL))
			default:
				var s string
				if p.Text != nil {
					s = *p.Text
				}
				t.Parts = append(t.Parts, TextPart(s))
			}
		}
		out.Turns = append(out.Turns, t)
	}
	return out
}

func isPlaceholder(content []ResponsesPart) bool {
	if len(content) != 1 {
		return false
	}
	p := content[0]
	return p.Type != responsesInputImage && (p.Text == nil || *p.Text == "")
}
