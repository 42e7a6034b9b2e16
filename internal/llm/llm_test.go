package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keepsakelabs/keepsake-core/internal/config"
)

func TestNewSelectsMode(t *testing.T) {
	if _, err := New(config.LLMConfig{Mode: "mock"}); err != nil {
		t.Fatalf("mock mode: %v", err)
	}
	if _, err := New(config.LLMConfig{Mode: "smoke-signals"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if _, err := New(config.LLMConfig{Mode: "exec", Command: ""}); err == nil {
		t.Fatal("expected error for empty exec command")
	}
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator()
	text, err := g.Generate(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text == "" {
		t.Fatal("expected non-empty mock reply")
	}
}

func TestOllamaGeneratorAccumulatesStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System != "be kind" {
			t.Errorf("unexpected system %q", req.System)
		}
		_, _ = w.Write([]byte(`{"response": "Yay! ", "done": false}` + "\n"))
		_, _ = w.Write([]byte(`{"response": "You found Mom!", "done": true}` + "\n"))
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "test-model")
	text, err := g.Generate(context.Background(), Request{System: "be kind", Prompt: "who?"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Yay! You found Mom!" {
		t.Fatalf("unexpected reply %q", text)
	}
}

func TestOpenAIGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": " Oooh! Who else? "}}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(config.LLMConfig{Mode: "openai", Endpoint: srv.URL, Model: "gpt-4o-mini"})
	text, err := g.Generate(context.Background(), Request{System: "persona", Prompt: "turn context"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Oooh! Who else?" {
		t.Fatalf("unexpected reply %q", text)
	}
}

func TestOpenAIGeneratorEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator(config.LLMConfig{Mode: "openai", Endpoint: srv.URL, Model: "gpt-4o-mini"})
	text, err := g.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty reply, got %q", text)
	}
}

func TestOllamaGeneratorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "test-model")
	if _, err := g.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error from failing endpoint")
	}
}
