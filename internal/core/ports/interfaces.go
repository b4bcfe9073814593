package ports

import (
	"context"

	"github.com/framehook/captiond/internal/core/domain"
)

// Retriever abstracts remote media retrieval (object store or presigned
// HTTP). Fetch writes exactly one file at dest; callers must not assume
// absence of a partial file after a failure.
type Retriever interface {
	Fetch(ctx context.Context, source, dest string) error
}

// Transcoder abstracts the external transcoding binary.
type Transcoder interface {
	// Normalize re-encodes the video into a consistent format. It never
	// fails the job: on any error the result is degraded and carries the
	// input path unchanged.
	Normalize(ctx context.Context, inputPath string) domain.NormalizeResult

	// ExtractAudio pulls the audio track out of a video. A non-nil error
	// means "no audio available" to the caller, never a job failure.
	ExtractAudio(ctx context.Context, inputPath string) (string, error)
}

// Transcriber turns an audio file into text. A nil Transcriber means the
// capability was never configured; callers treat that as "no transcript"
// without any network call.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// VisionModel is the boundary to the vision-language capability. The
// underlying runtime is single-device: callers must serialize Generate.
type VisionModel interface {
	// Load brings the model up. Called once at startup; failure leaves
	// the capability unavailable but the process running.
	Load(ctx context.Context) error

	// Loaded reports whether a Load ever succeeded.
	Loaded() bool

	// Generate produces a caption for the video at videoPath.
	Generate(ctx context.Context, videoPath, prompt string, maxTokens int) (string, error)

	// Unload releases the model at shutdown. Best effort.
	Unload(ctx context.Context) error
}

// ChatProvider is the uniform contract over text-generation backends.
// Implementations normalize their own wire shape and never leak
// provider-specific errors (runtime failures surface as ChatAPIError).
type ChatProvider interface {
	Chat(ctx context.Context, messages []domain.ChatMessage, maxTokens int, temperature float32) (string, error)

	// Model returns the resolved model identifier, for introspection.
	Model() string
}

// Notifier delivers a job's single terminal payload to the configured
// callback. With no endpoint configured it acknowledges without any
// network call.
type Notifier interface {
	Notify(ctx context.Context, payload domain.WebhookPayload) (map[string]any, error)
}
