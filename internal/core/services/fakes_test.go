package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/framehook/captiond/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// fakeRetriever writes canned bytes to dest, or fails. siblingExts
// controls which sibling audio references succeed.
type fakeRetriever struct {
	mu          sync.Mutex
	err         error
	content     []byte
	siblingExts map[string]bool // ext -> fetch succeeds
	fetched     []string
	lastDest    string
}

func (f *fakeRetriever) Fetch(ctx context.Context, source, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, source)

	if f.siblingExts != nil {
		ext := extOf(source)
		if !f.siblingExts[ext] {
			return &domain.RetrievalError{Source: source, Err: errors.New("not found")}
		}
	} else if f.err != nil {
		return f.err
	}

	content := f.content
	if content == nil {
		content = []byte("data")
	}
	f.lastDest = dest
	return os.WriteFile(dest, content, 0o644)
}

func extOf(ref string) string {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '.' {
			return ref[i:]
		}
		if ref[i] == '/' {
			break
		}
	}
	return ""
}

// fakeTranscoder records calls. When writeOutputs is set, Normalize and
// ExtractAudio create their output files like the real binary would.
type fakeTranscoder struct {
	mu            sync.Mutex
	normalizeErr  error
	extractErr    error
	writeOutputs  bool
	normalized    []string
	extractCalled int
}

func (f *fakeTranscoder) Normalize(ctx context.Context, inputPath string) domain.NormalizeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.normalized = append(f.normalized, inputPath)

	if f.normalizeErr != nil {
		return domain.NormalizeResult{Path: inputPath, Degraded: true, Warning: f.normalizeErr}
	}
	out := domain.PreprocessedPath(inputPath)
	if f.writeOutputs {
		os.WriteFile(out, []byte("normalized"), 0o644)
	}
	return domain.NormalizeResult{Path: out}
}

func (f *fakeTranscoder) ExtractAudio(ctx context.Context, inputPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalled++

	if f.extractErr != nil {
		return "", f.extractErr
	}
	out := domain.StripExt(inputPath) + "_extracted.mp3"
	if f.writeOutputs {
		os.WriteFile(out, []byte("audio"), 0o644)
	}
	return out, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f.text, f.err
}

// fakeVisionModel records the prompts it saw.
type fakeVisionModel struct {
	mu      sync.Mutex
	loaded  bool
	caption string
	err     error
	calls   int
	prompts []string
}

func (f *fakeVisionModel) Load(ctx context.Context) error { return nil }
func (f *fakeVisionModel) Loaded() bool                   { return f.loaded }
func (f *fakeVisionModel) Unload(ctx context.Context) error {
	f.loaded = false
	return nil
}

func (f *fakeVisionModel) Generate(ctx context.Context, videoPath, prompt string, maxTokens int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.caption, f.err
}

// fakeChatProvider records the exact ordered message sequence.
type fakeChatProvider struct {
	reply     string
	err       error
	messages  []domain.ChatMessage
	maxTokens int
	temp      float32
}

func (f *fakeChatProvider) Model() string { return "fake-model" }

func (f *fakeChatProvider) Chat(ctx context.Context, messages []domain.ChatMessage, maxTokens int, temperature float32) (string, error) {
	f.messages = messages
	f.maxTokens = maxTokens
	f.temp = temperature
	return f.reply, f.err
}

// fakeNotifier counts deliveries and keeps every payload.
type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	payloads []domain.WebhookPayload
}

func (f *fakeNotifier) Notify(ctx context.Context, payload domain.WebhookPayload) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"status": "success"}, nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func testEngine(t *testing.T, model *fakeVisionModel, tc *fakeTranscoder) *CaptionEngine {
	t.Helper()
	return NewCaptionEngine(testLogger(), model, tc, EngineConfig{
		PromptFilePath:  "/nonexistent/prompt.txt",
		DefaultPrompt:   "Describe this video.",
		MaxTokens:       1024,
		UseTranscript:   true,
		VideoExtensions: []string{".mp4", ".mov", ".avi", ".webm", ".mkv", ".gif", ".flv"},
	})
}
