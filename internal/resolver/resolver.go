package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.istero.com"
	defaultTimeout = 30 * time.Second
)

// ResolutionError is returned when the resolver cannot turn a share URL into
// a downloadable video.
type ResolutionError struct {
	URL        string
	StatusCode int
	Code       int
	Message    string
	// Err is set when the resolver could not be reached at all.
	Err error
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %v", e.URL, e.Err)
	}
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("resolve %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("resolve %s: code %d: %s", e.URL, e.Code, e.Message)
}

// Resolution is the metadata returned for a share URL.
type Resolution struct {
	Title        string `json:"title"`
	CoverURL     string `json:"cover"`
	DownloadURL  string `json:"url"`
	PlatformName string `json:"platformName"`
}

// Client resolves short-video share URLs through the video analysis API and
// downloads the resulting media.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a resolver client for the default endpoint.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type analysisResponse struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Msg     string     `json:"msg"`
	Data    Resolution `json:"data"`
}

// Resolve looks up the media behind shareURL.
func (c *Client) Resolve(ctx context.Context, shareURL string) (Resolution, error) {
	form := url.Values{"url": {shareURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resource/v2/video/analysis", strings.NewReader(form.Encode()))
	if err != nil {
		return Resolution{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Resolution{}, fmt.Errorf("resolve request: %w", ctx.Err())
		}
		return Resolution{}, &ResolutionError{URL: shareURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return Resolution{}, fmt.Errorf("reading resolve response: %w", ctx.Err())
		}
		return Resolution{}, &ResolutionError{URL: shareURL, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Resolution{}, &ResolutionError{URL: shareURL, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var ar analysisResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return Resolution{}, &ResolutionError{URL: shareURL, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	if ar.Code != 200 {
		msg := ar.Message
		if msg == "" {
			msg = ar.Msg
		}
		return Resolution{}, &ResolutionError{URL: shareURL, StatusCode: resp.StatusCode, Code: ar.Code, Message: msg}
	}
	if ar.Data.DownloadURL == "" {
		return Resolution{}, &ResolutionError{URL: shareURL, StatusCode: resp.StatusCode, Code: ar.Code, Message: "no download url in response"}
	}
	return ar.Data, nil
}
