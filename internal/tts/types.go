package tts

import (
	"context"
	"fmt"

	"github.com/keepsakelabs/keepsake-core/internal/config"
)

// Request contains parameters to synthesize speech.
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// Synthesizer is the contract for producing audio. A failure degrades the
// turn to text-only; it is never fatal to the session.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// New selects a backend by configured mode.
func New(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynth(), nil
	case "exec":
		return NewExecSynth(cfg.Command)
	case "openai":
		return NewOpenAISynth(cfg), nil
	default:
		return nil, fmt.Errorf("unknown tts mode %q", cfg.Mode)
	}
}
