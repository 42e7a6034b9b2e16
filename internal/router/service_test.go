package router

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/keepsakelabs/keepsake-core/internal/config"
	"github.com/keepsakelabs/keepsake-core/internal/deck"
	"github.com/keepsakelabs/keepsake-core/internal/eventstore"
	"github.com/keepsakelabs/keepsake-core/internal/llm"
	"github.com/keepsakelabs/keepsake-core/internal/session"
	"github.com/keepsakelabs/keepsake-core/internal/speech"
	"github.com/keepsakelabs/keepsake-core/internal/stt"
	"github.com/keepsakelabs/keepsake-core/internal/tts"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	deckPath := filepath.Join(t.TempDir(), "photos.json")
	deckJSON := `[{"file": "one.jpg", "description": "My with her mom at the beach"}]`
	if err := os.WriteFile(deckPath, []byte(deckJSON), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	d, err := deck.Load(deckPath)
	if err != nil {
		t.Fatalf("load deck: %v", err)
	}

	log := quietLogger()
	sess := session.New(d, "Be warm.", stt.NewMockRecognizer(), llm.NewMockGenerator(), tts.NewMockSynth(),
		speech.New(func(int) int { return 0 }), session.Config{
			MinTurns: 4,
			MaxTurns: 6,
			Voice:    "nova",
			Speed:    0.75,
			UserName: "My",
		}, log)

	store, err := eventstore.Open(context.Background(), config.EventStoreConfig{RetentionMode: "ephemeral"}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	// The bus client stays nil: these tests exercise lifecycle state only,
	// which never touches the connection.
	return NewService(context.Background(), nil, sess, store, log)
}

func TestHealthyBeforeStart(t *testing.T) {
	s := newTestService(t)
	if s.Healthy() {
		t.Fatal("service must not report healthy before Start")
	}
}

func TestHealthyAfterClose(t *testing.T) {
	s := newTestService(t)
	s.Close()
	if s.Healthy() {
		t.Fatal("service must not report healthy after Close")
	}
}

func TestHealthyConcurrentWithClose(t *testing.T) {
	s := newTestService(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.Healthy()
		}
	}()
	go func() {
		defer wg.Done()
		s.Close()
	}()
	wg.Wait()

	if s.Healthy() {
		t.Fatal("service must not report healthy after Close")
	}
}

func TestReplyAudioCarriesConfiguredVoice(t *testing.T) {
	s := newTestService(t)
	msg := s.replyAudio([]byte{0x01, 0x02})
	if msg.Voice != "nova" {
		t.Fatalf("reply audio voice = %q, want %q", msg.Voice, "nova")
	}
	if len(msg.Audio) != 2 {
		t.Fatalf("reply audio payload = %d bytes, want 2", len(msg.Audio))
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("reply audio must carry a timestamp")
	}
}
