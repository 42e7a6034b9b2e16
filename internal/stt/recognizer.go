package stt

import (
	"context"
	"fmt"

	"github.com/keepsakelabs/keepsake-core/internal/config"
)

// Result captures recognizer output. Text may be empty; callers decide what
// an empty transcript means.
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer abstracts STT backends. Audio is raw little-endian PCM16 from
// the edge microphone.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte) (Result, error)
}

// New selects a backend by configured mode.
func New(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockRecognizer(), nil
	case "exec":
		return NewExecRecognizer(cfg)
	case "openai":
		return NewOpenAIRecognizer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
