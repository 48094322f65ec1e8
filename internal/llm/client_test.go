package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientUnsupportedProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "smoke-signals"})
	if err == nil {
		t.Error("NewClient with unknown provider should fail")
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d, want 2 (system + user)", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("first message role = %q, want system", req.Messages[0].Role)
		}
		if req.Temperature != 0.3 || req.MaxTokens != 100 {
			t.Errorf("options not forwarded: temp=%v max=%d", req.Temperature, req.MaxTokens)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "hello back"}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o-mini"})
	got, err := client.CompleteWithOptions(context.Background(), "you are terse", "hi",
		Options{Temperature: 0.3, MaxTokens: 100})
	if err != nil {
		t.Fatalf("CompleteWithOptions: %v", err)
	}
	if got != "hello back" {
		t.Errorf("completion = %q", got)
	}
}

func TestOpenAIClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid model", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Error("API error payload should surface as error")
	}
}

func TestOpenAIClientRetriesOn429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
	got, err := client.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" || calls != 2 {
		t.Errorf("got %q after %d calls, want ok after 2", got, calls)
	}
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := client.Complete(context.Background(), "hi"); err == nil {
		t.Error("empty choices should be an error")
	}
}

func TestOllamaProviderUsesOpenAICompat(t *testing.T) {
	client, err := NewClient(Config{Provider: "ollama", Model: "llama3"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Name() != "openai:llama3" {
		t.Errorf("Name = %q", client.Name())
	}
}
