package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.302.ai"
	defaultModel   = "gemini-3-flash-preview"
	defaultTimeout = 120 * time.Second
)

// CompletionError is returned when the chat endpoint cannot be reached,
// answers with a non-2xx status or sends a body that cannot be understood.
type CompletionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion: unexpected status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("completion: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Part is one element of a multimodal user message.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	VideoURL *MediaURL `json:"video_url,omitempty"`
	ImageURL *MediaURL `json:"image_url,omitempty"`
}

// MediaURL points at remote media or carries it inline as a data: URL.
type MediaURL struct {
	URL string `json:"url"`
}

// TextPart and VideoPart build the common multimodal parts.
func TextPart(text string) Part { return Part{Type: "text", Text: text} }

func VideoPart(url string) Part { return Part{Type: "video_url", VideoURL: &MediaURL{URL: url}} }

// Request describes one chat completion. When Parts is non-empty it is sent
// as the user message instead of User.
type Request struct {
	System      string
	User        string
	Parts       []Part
	Temperature float64
	MaxTokens   int
	// JSONMode asks the endpoint for a JSON object reply. The pipeline's own
	// prompts expect labelled text, so only callers of the client that want
	// structured output set it.
	JSONMode    bool
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a client for the default endpoint and model.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
// Empty model keeps the default.
func NewClientWithBaseURL(apiKey, baseURL, model string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	if model != "" {
		c.model = model
	}
	return c
}

// SetTimeout overrides the per-request HTTP timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// Model returns the model name sent with each request.
func (c *Client) Model() string { return c.model }

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion and returns the assistant text. There
// are no retries. Failures surface as a *CompletionError, except a cancelled
// or expired ctx, which is returned as the context error.
func (c *Client) Complete(ctx context.Context, r Request) (string, error) {
	cr := chatRequest{
		Model:       c.model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
	if r.System != "" {
		cr.Messages = append(cr.Messages, message{Role: "system", Content: r.System})
	}
	if len(r.Parts) > 0 {
		cr.Messages = append(cr.Messages, message{Role: "user", Content: r.Parts})
	} else {
		cr.Messages = append(cr.Messages, message{Role: "user", Content: r.User})
	}
	if r.JSONMode {
		cr.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("executing request: %w", ctx.Err())
		}
		return "", &CompletionError{Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("reading response: %w", ctx.Err())
		}
		return "", &CompletionError{Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &CompletionError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &CompletionError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return "", &CompletionError{Err: fmt.Errorf("response has no choices")}
	}

	return result.Choices[0].Message.Content, nil
}
