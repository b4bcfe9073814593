// Package transcribe adapts the external speech-recognition service.
// Transcription is a soft dependency: construction is skipped entirely
// when no credential is configured, and service errors degrade to "no
// transcript" at the orchestrator, never aborting a job.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// Whisper transcribes audio through Groq's OpenAI-compatible endpoint
// with deterministic decoding.
type Whisper struct {
	logger *slog.Logger
	client *openai.Client
	model  string
}

func NewWhisper(logger *slog.Logger, apiKey, model string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &Whisper{
		logger: logger,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (string, error) {
	w.logger.Info("transcribing", "audio", audioPath, "model", w.model)

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       w.model,
		FilePath:    audioPath,
		Temperature: 0,
		Format:      openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription error: %w", err)
	}

	w.logger.Info("transcription complete", "chars", len(resp.Text))
	return resp.Text, nil
}
