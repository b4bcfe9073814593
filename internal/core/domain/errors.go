package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable means the vision model/processor pair was never
	// successfully loaded.
	ErrModelUnavailable = errors.New("model not loaded")

	// ErrChatUnavailable means no LLM client was initialized at startup.
	ErrChatUnavailable = errors.New("LLM client not initialized")
)

// RetrievalError reports a failed remote fetch: invalid reference,
// missing object, or transport failure.
type RetrievalError struct {
	Source string
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("download failed for %s: %v", e.Source, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// NotFoundError reports a missing local video file at caption time.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("video not found: %s", e.Path)
}

// UnsupportedFormatError reports a video extension outside the
// recognized set.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.Extension)
}

// ProviderConfigError reports a chat or transcription client that could
// not be constructed. Fatal at startup only: the capability is marked
// unavailable, the process keeps running.
type ProviderConfigError struct {
	Provider string
	Reason   string
}

func (e *ProviderConfigError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Reason)
}

// ChatAPIError is the uniform wrapper over any provider-specific runtime
// failure. Raw provider errors never cross the ChatProvider boundary.
type ChatAPIError struct {
	Provider string
	Err      error
}

func (e *ChatAPIError) Error() string {
	return fmt.Sprintf("LLM API error (%s): %v", e.Provider, e.Err)
}

func (e *ChatAPIError) Unwrap() error { return e.Err }

// DeliveryError reports a webhook that was unreachable or rejected the
// payload.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
