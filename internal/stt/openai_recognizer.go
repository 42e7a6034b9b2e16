package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/keepsakelabs/keepsake-core/internal/config"
)

// openaiRecognizer talks to a Whisper-compatible transcription endpoint.
type openaiRecognizer struct {
	cfg config.STTConfig
}

func NewOpenAIRecognizer(cfg config.STTConfig) Recognizer {
	return &openaiRecognizer{cfg: cfg}
}

type openaiTranscription struct {
	Text string `json:"text"`
}

func (r *openaiRecognizer) Transcribe(ctx context.Context, pcm []byte) (Result, error) {
	file, err := os.CreateTemp(os.TempDir(), "keepsake_stt_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCMToWav(file, pcm, r.cfg.SampleRate, r.cfg.Channels); err != nil {
		return Result{}, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("rewind wav: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return Result{}, fmt.Errorf("copy wav into request: %w", err)
	}
	if err := writer.WriteField("model", r.cfg.Model); err != nil {
		return Result{}, err
	}
	if r.cfg.Language != "" {
		if err := writer.WriteField("language", r.cfg.Language); err != nil {
			return Result{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	url := r.cfg.Endpoint + "/v1/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if r.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("transcription endpoint returned status %s", resp.Status)
	}

	var out openaiTranscription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode transcription response: %w", err)
	}
	return Result{Text: out.Text}, nil
}
