package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/framehook/captiond/internal/core/domain"
	"github.com/framehook/captiond/internal/core/ports"
)

// EngineConfig carries the caption engine's fixed settings.
type EngineConfig struct {
	PromptFilePath  string
	DefaultPrompt   string
	MaxTokens       int
	UseTranscript   bool
	VideoExtensions []string
}

// CaptionEngine is the boundary to the vision-language capability:
// validates input, normalizes best-effort, merges the optional
// transcript into the prompt, and invokes inference. The underlying
// device runs one generation at a time, so generations serialize on an
// internal mutex.
type CaptionEngine struct {
	logger     *slog.Logger
	model      ports.VisionModel
	transcoder ports.Transcoder
	cfg        EngineConfig

	genMu      sync.Mutex
	promptOnce sync.Once
	prompt     string
}

func NewCaptionEngine(logger *slog.Logger, model ports.VisionModel, transcoder ports.Transcoder, cfg EngineConfig) *CaptionEngine {
	return &CaptionEngine{
		logger:     logger,
		model:      model,
		transcoder: transcoder,
		cfg:        cfg,
	}
}

// Prompt reads and caches the base prompt from the configured file,
// falling back to the default when the file is missing or empty.
func (e *CaptionEngine) Prompt() string {
	e.promptOnce.Do(func() {
		e.prompt = e.cfg.DefaultPrompt
		data, err := os.ReadFile(e.cfg.PromptFilePath)
		if err != nil {
			e.logger.Warn("prompt file not readable, using default", "path", e.cfg.PromptFilePath, "error", err)
			return
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			e.prompt = text
		}
	})
	return e.prompt
}

// Ready reports whether the vision capability is available.
func (e *CaptionEngine) Ready() bool {
	return e.model.Loaded()
}

// Caption generates a caption for the video at videoPath. The transcript
// is appended as a delimited context block only when present and the
// transcript switch is enabled.
func (e *CaptionEngine) Caption(ctx context.Context, videoPath, transcript string) (string, error) {
	if !e.model.Loaded() {
		return "", domain.ErrModelUnavailable
	}

	if _, err := os.Stat(videoPath); err != nil {
		return "", &domain.NotFoundError{Path: videoPath}
	}

	ext := strings.ToLower(filepath.Ext(videoPath))
	if !e.recognized(ext) {
		return "", &domain.UnsupportedFormatError{Extension: ext}
	}

	norm := e.transcoder.Normalize(ctx, videoPath)
	if norm.Degraded {
		e.logger.Warn("captioning un-normalized video", "video", videoPath, "warning", norm.Warning)
	}

	fullPrompt := e.Prompt()
	if transcript != "" && e.cfg.UseTranscript {
		fullPrompt = fmt.Sprintf("%s\n\nAudio transcript for context:\n%s", fullPrompt, transcript)
	}

	e.genMu.Lock()
	defer e.genMu.Unlock()

	caption, err := e.model.Generate(ctx, norm.Path, fullPrompt, e.cfg.MaxTokens)
	if err != nil {
		return "", err
	}

	e.logger.Info("caption generated", "chars", len(caption))
	return caption, nil
}

func (e *CaptionEngine) recognized(ext string) bool {
	for _, v := range e.cfg.VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}
