package llm

import (
	"context"
	"fmt"

	"github.com/keepsakelabs/keepsake-core/internal/config"
)

// Request describes a language model prompt. System carries the fixed persona
// instructions; Prompt carries the per-turn context.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator defines a pluggable LLM backend. It returns the full reply text;
// an empty string or an error both mean the caller falls back to its fixed
// phrase.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New selects a backend by configured mode.
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	case "openai":
		return NewOpenAIGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm mode %q", cfg.Mode)
	}
}
