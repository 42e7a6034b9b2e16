package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keepsakelabs/keepsake-core/internal/config"
)

func TestNewSelectsMode(t *testing.T) {
	if _, err := New(config.TTSConfig{Mode: "mock"}); err != nil {
		t.Fatalf("mock mode: %v", err)
	}
	if _, err := New(config.TTSConfig{Mode: "gramophone"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if _, err := New(config.TTSConfig{Mode: "exec", Command: ""}); err == nil {
		t.Fatal("expected error for empty exec command")
	}
}

func TestMockSynth(t *testing.T) {
	s := NewMockSynth()
	audio, err := s.Synthesize(context.Background(), Request{Text: "hello", Voice: "nova", Speed: 0.75})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audio) == 0 {
		t.Fatal("expected audio payload")
	}
	if _, err := s.Synthesize(context.Background(), Request{Text: ""}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestOpenAISynth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Voice != "nova" || req.Speed != 0.75 {
			t.Errorf("unexpected voice/speed %q/%v", req.Voice, req.Speed)
		}
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s := NewOpenAISynth(config.TTSConfig{Mode: "openai", Endpoint: srv.URL, Model: "tts-1", MaxChars: 4096})
	audio, err := s.Synthesize(context.Background(), Request{Text: "Oooh! Look!", Voice: "nova", Speed: 0.75})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("unexpected audio %q", audio)
	}
}

func TestOpenAISynthRejectsOversizedText(t *testing.T) {
	s := NewOpenAISynth(config.TTSConfig{Mode: "openai", Endpoint: "http://unused", Model: "tts-1", MaxChars: 10})
	if _, err := s.Synthesize(context.Background(), Request{Text: strings.Repeat("a", 11), Voice: "nova"}); err == nil {
		t.Fatal("expected error for oversized text")
	}
}

func TestOpenAISynthServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewOpenAISynth(config.TTSConfig{Mode: "openai", Endpoint: srv.URL, Model: "tts-1", MaxChars: 4096})
	if _, err := s.Synthesize(context.Background(), Request{Text: "hello", Voice: "nova"}); err == nil {
		t.Fatal("expected error from failing endpoint")
	}
}
