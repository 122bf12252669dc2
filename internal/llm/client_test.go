package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestComplete_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"1. 核心主题：效率"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL, "test-model")
	text, err := c.Complete(context.Background(), Request{
		System:      "sys",
		User:        "hello",
		Temperature: 0.7,
		MaxTokens:   3000,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "1. 核心主题：效率" {
		t.Errorf("text = %q", text)
	}

	if got["model"] != "test-model" {
		t.Errorf("model = %v, want test-model", got["model"])
	}
	if got["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got["temperature"])
	}
	if got["max_tokens"] != float64(3000) {
		t.Errorf("max_tokens = %v, want 3000", got["max_tokens"])
	}
	if _, ok := got["response_format"]; ok {
		t.Error("response_format set without JSONMode")
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2 (system + user)", len(msgs))
	}
	if m := msgs[0].(map[string]any); m["role"] != "system" || m["content"] != "sys" {
		t.Errorf("system message = %v", m)
	}
}

func TestComplete_NoSystemPrompt(t *testing.T) {
	var msgs []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		msgs, _ = req["messages"].([]any)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL, "")
	if _, err := c.Complete(context.Background(), Request{User: "u"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}
	if c.Model() != defaultModel {
		t.Errorf("Model() = %q, want default %q", c.Model(), defaultModel)
	}
}

func TestComplete_JSONModeAndParts(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"a\":1}"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL, "")
	text, err := c.Complete(context.Background(), Request{
		Parts:    []Part{TextPart("describe"), VideoPart("data:video/mp4;base64,AAAA")},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `{"a":1}` {
		t.Errorf("text = %q", text)
	}

	rf, _ := req["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", req["response_format"])
	}
	msgs := req["messages"].([]any)
	content, ok := msgs[0].(map[string]any)["content"].([]any)
	if !ok || len(content) != 2 {
		t.Fatalf("user content = %v, want 2 parts", msgs[0])
	}
	video := content[1].(map[string]any)
	if video["type"] != "video_url" {
		t.Errorf("part type = %v, want video_url", video["type"])
	}
}

func TestComplete_ErrorStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"slow down"}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL, "")
	_, err := c.Complete(context.Background(), Request{User: "u"})

	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *CompletionError", err)
	}
	if ce.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", ce.StatusCode)
	}
	if !strings.Contains(ce.Body, "slow down") {
		t.Errorf("Body = %q", ce.Body)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want exactly 1 (no retries)", n)
	}
}

func TestComplete_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `<html>gateway</html>`,
		"no choices": `{"choices":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			c := NewClientWithBaseURL("k", srv.URL, "")
			_, err := c.Complete(context.Background(), Request{User: "u"})
			var ce *CompletionError
			if !errors.As(err, &ce) {
				t.Fatalf("error = %v, want *CompletionError", err)
			}
			if ce.StatusCode != 0 {
				t.Errorf("StatusCode = %d, want 0 for malformed body", ce.StatusCode)
			}
		})
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":""}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL, "")
	text, err := c.Complete(context.Background(), Request{User: "u"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}
