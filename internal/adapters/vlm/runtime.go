// Package vlm adapts the local vision-language inference runtime. The
// model's internals (weights, quantization, attention kernels) live in
// the runtime process; this side only loads, generates, and unloads.
package vlm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Runtime talks to a single-device inference sidecar over HTTP. The
// device executes at most one generation at a time; serialization is the
// caption engine's responsibility.
type Runtime struct {
	logger  *slog.Logger
	baseURL string
	client  *http.Client

	modelID       string
	quantization  string
	attentionImpl string
	loaded        atomic.Bool
}

func NewRuntime(logger *slog.Logger, baseURL, modelID, quantization, attentionImpl string) *Runtime {
	return &Runtime{
		logger:  logger,
		baseURL: baseURL,
		// Generation has no wall-clock timeout: it is bounded indirectly
		// by the max-output-token budget.
		client:        &http.Client{},
		modelID:       modelID,
		quantization:  quantization,
		attentionImpl: attentionImpl,
	}
}

type loadRequest struct {
	Model         string `json:"model"`
	Quantization  string `json:"quantization,omitempty"`
	AttentionImpl string `json:"attention_impl,omitempty"`
}

type generateRequest struct {
	VideoPath string `json:"video_path"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_new_tokens"`
}

type generateResponse struct {
	Caption string `json:"caption"`
}

// Load brings the model up in the runtime. When the requested attention
// implementation is flash_attention_2 and loading fails, it retries once
// with eager before giving up.
func (r *Runtime) Load(ctx context.Context) error {
	r.logger.Info("loading model", "model", r.modelID, "quant", r.quantization, "attn", r.attentionImpl)

	err := r.post(ctx, "/load", loadRequest{
		Model:         r.modelID,
		Quantization:  r.quantization,
		AttentionImpl: r.attentionImpl,
	}, nil)
	if err != nil && r.attentionImpl == "flash_attention_2" {
		r.logger.Warn("flash attention load failed, retrying with eager", "error", err)
		err = r.post(ctx, "/load", loadRequest{
			Model:         r.modelID,
			Quantization:  r.quantization,
			AttentionImpl: "eager",
		}, nil)
	}
	if err != nil {
		return fmt.Errorf("model load failed: %w", err)
	}

	r.loaded.Store(true)
	r.logger.Info("model loaded successfully")
	return nil
}

func (r *Runtime) Loaded() bool {
	return r.loaded.Load()
}

func (r *Runtime) Generate(ctx context.Context, videoPath, prompt string, maxTokens int) (string, error) {
	var resp generateResponse
	err := r.post(ctx, "/generate", generateRequest{
		VideoPath: videoPath,
		Prompt:    prompt,
		MaxTokens: maxTokens,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return resp.Caption, nil
}

// Unload releases the model and device memory at shutdown. Best effort.
func (r *Runtime) Unload(ctx context.Context) error {
	unloadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r.loaded.Store(false)
	if err := r.post(unloadCtx, "/unload", struct{}{}, nil); err != nil {
		return fmt.Errorf("model unload failed: %w", err)
	}
	r.logger.Info("model unloaded")
	return nil
}

func (r *Runtime) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("runtime connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("runtime returned status %d: %s", resp.StatusCode, string(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
