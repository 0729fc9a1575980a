package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	maxErrorBodyBytes = 2048
)

// Client sends normalized requests to an OpenAI-compatible upstream.
type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// Send posts req in its shape and returns the model's answer text.
func (c *Client) Send(ctx context.Context, ep Endpoint, req NormalizedRequest) (string, error) {
	switch req.Shape {
	case ShapeResponses:
		body, err := c.post(ctx, ep, "/responses", EncodeResponses(req))
		if err != nil {
			return "", err
		}
		return responsesAnswer(body)
	default:
		body, err := c.post(ctx, ep, "/chat/completions", EncodeChat(req))
		if err != nil {
			return "", err
		}
		return chatAnswer(body)
	}
}

// authorized wraps the base client in a bearer-token transport.
func (c *Client) authorized(ctx context.Context, apiKey string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}))
}

func (c *Client) post(ctx context.Context, ep Endpoint, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL(ep)+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.authorized(ctx, ep.APIKey).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxErrorBodyBytes)}
	}
	return body, nil
}

func chatAnswer(body []byte) (string, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		content = chatMessageText(resp.Choices[0].Message)
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

type responsesEnvelope struct {
	OutputText string `json:"output_text"`
	Response   *struct {
		OutputText string `json:"output_text"`
	} `json:"response"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func responsesAnswer(body []byte) (string, error) {
	var env responsesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decode responses response: %w", err)
	}
	content := env.OutputText
	if content == "" && env.Response != nil {
		content = env.Response.OutputText
	}
	if content == "" {
		var b strings.Builder
		for _, item := range env.Output {
			for _, part := range item.Content {
				if part.Type == responsesOutputText {
					b.WriteString(part.Text)
				}
			}
		}
		content = b.String()
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Transcribe uploads audio as a multipart form and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, ep Endpoint, model, filename string, audio []byte) (string, error) {
	cfg := openai.DefaultConfig(ep.APIKey)
	cfg.BaseURL = baseURL(ep)
	cfg.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(cfg)
	if model == "" {
		model = openai.Whisper1
	}
	tr, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		Reader:   bytes.NewReader(audio),
		FilePath: filename,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", &UpstreamError{Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
		}
		return "", err
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func baseURL(ep Endpoint) string {
	base := strings.TrimSpace(ep.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
