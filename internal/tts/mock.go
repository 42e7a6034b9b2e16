package tts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type mockSynth struct{}

func NewMockSynth() Synthesizer { return &mockSynth{} }

func (m *mockSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("nothing to synthesize")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}
	return []byte(fmt.Sprintf("[mock audio voice=%s len=%d]", req.Voice, len(req.Text))), nil
}
