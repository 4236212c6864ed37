package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAssistantNotConfigured(t *testing.T) {
	a := New(Config{})
	if a.Enabled() {
		t.Fatalf("Enabled() = true without key")
	}
	if _, err := a.Complete(context.Background(), "help"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Complete() error = %v, want ErrNotConfigured", err)
	}
	if New(Config{APIKey: "your-openai-api-key-here"}).Enabled() {
		t.Fatalf("placeholder key should not enable the assistant")
	}
}

func TestAssistantComplete(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-3.5-turbo",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "  Call 118 now.  "}
			}]
		}`))
	}))
	defer srv.Close()

	a := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	reply, err := a.Complete(context.Background(), "someone collapsed")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "Call 118 now." {
		t.Fatalf("Complete() = %q", reply)
	}
	if got.Model != "gpt-3.5-turbo" || got.MaxTokens != 500 {
		t.Fatalf("request model=%q max_tokens=%d", got.Model, got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "someone collapsed" {
		t.Fatalf("request messages = %+v", got.Messages)
	}
}

func TestAssistantUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	a := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if _, err := a.Complete(context.Background(), "hi"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("Complete() error = %v, want ErrUpstream", err)
	}
}
