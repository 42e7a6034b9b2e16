package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/keepsakelabs/keepsake-core/internal/config"
)

// openaiSynth talks to a speech-synthesis compatible endpoint. The endpoint
// rejects invalid characters and over-long input; both surface as plain
// errors for the caller to degrade on.
type openaiSynth struct {
	cfg config.TTSConfig
}

func NewOpenAISynth(cfg config.TTSConfig) Synthesizer {
	return &openaiSynth{cfg: cfg}
}

type speechRequest struct {
	Model string  `json:"model"`
	Input string  `json:"input"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed,omitempty"`
}

func (s *openaiSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("nothing to synthesize")
	}
	if s.cfg.MaxChars > 0 && len(req.Text) > s.cfg.MaxChars {
		return nil, fmt.Errorf("text exceeds synthesis limit of %d characters", s.cfg.MaxChars)
	}

	body, err := json.Marshal(speechRequest{
		Model: s.cfg.Model,
		Input: req.Text,
		Voice: req.Voice,
		Speed: req.Speed,
	})
	if err != nil {
		return nil, err
	}

	url := s.cfg.Endpoint + "/v1/audio/speech"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("speech endpoint returned status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
