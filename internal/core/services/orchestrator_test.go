package services

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framehook/captiond/internal/core/domain"
)

type orchFixture struct {
	retriever   *fakeRetriever
	transcoder  *fakeTranscoder
	transcriber *fakeTranscriber
	model       *fakeVisionModel
	chat        *fakeChatProvider
	notifier    *fakeNotifier
	orch        *Orchestrator
}

func newOrchFixture(t *testing.T, mode string) *orchFixture {
	t.Helper()
	f := &orchFixture{
		retriever:   &fakeRetriever{},
		transcoder:  &fakeTranscoder{writeOutputs: true},
		transcriber: &fakeTranscriber{text: "spoken words"},
		model:       &fakeVisionModel{loaded: true, caption: "a cat on a skateboard"},
		chat:        &fakeChatProvider{reply: "refined caption"},
		notifier:    &fakeNotifier{},
	}
	engine := testEngine(t, f.model, f.transcoder)
	policy := NewAudioPolicy(testLogger(), f.retriever, f.transcoder, mode, []string{".mp3", ".m4a", ".wav"})
	f.orch = NewOrchestrator(
		testLogger(), f.retriever, policy, f.transcriber, engine, f.chat, f.notifier,
		true,
		ChatDefaults{SystemPrompt: "default system", MaxTokens: 2000, Temperature: 0.7},
	)
	return f
}

func TestCaptionJob_SuccessDeliversExactCaption(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
		JobID:    "job-1",
	})

	require.Equal(t, 1, f.notifier.count(), "exactly one webhook per job")
	payload := f.notifier.payloads[0]
	assert.Equal(t, "a cat on a skateboard", payload.Message, "caption must pass through unmodified")
	require.NotNil(t, payload.ID)
	assert.Equal(t, "job-1", *payload.ID)
}

func TestCaptionJob_MissingJobIDDeliversNullID(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
	})

	require.Equal(t, 1, f.notifier.count())
	assert.Nil(t, f.notifier.payloads[0].ID)
}

func TestCaptionJob_RetrievalFailureDeliversErrorOnce(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)
	f.retriever.err = &domain.RetrievalError{Source: "s3://bucket/clip.mp4", Err: errors.New("no such key")}

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "s3://bucket/clip.mp4",
		JobID:    "job-2",
	})

	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.payloads[0].Message, "ERROR: ")
	assert.Contains(t, f.notifier.payloads[0].Message, "no such key")
	assert.Equal(t, 0, f.model.calls, "no inference after a failed download")
}

func TestCaptionJob_UnsupportedFormatNoInference(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/notes.txt",
		JobID:    "job-3",
	})

	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.payloads[0].Message, "ERROR: ")
	assert.Contains(t, f.notifier.payloads[0].Message, "unsupported format")
	assert.Equal(t, 0, f.model.calls)
}

func TestCaptionJob_ModelUnavailableDeliversError(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)
	f.model.loaded = false

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
		JobID:    "job-4",
	})

	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.payloads[0].Message, "ERROR: ")
	assert.Contains(t, f.notifier.payloads[0].Message, "model not loaded")
}

func TestCaptionJob_TranscriptionFailureDegradesNotFails(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)
	f.transcriber.err = errors.New("speech service down")

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
		JobID:    "job-5",
	})

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "a cat on a skateboard", f.notifier.payloads[0].Message,
		"a failed transcript must not fail the job")
	require.Equal(t, 1, f.model.calls)
	assert.NotContains(t, f.model.prompts[0], "Audio transcript", "no transcript context when transcription failed")
}

func TestCaptionJob_TranscriptMergedIntoPrompt(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
	})

	require.Equal(t, 1, f.model.calls)
	assert.Contains(t, f.model.prompts[0], "Audio transcript for context:\nspoken words")
}

func TestCaptionJob_CleansUpAllArtifacts(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
	})

	video := f.retriever.lastDest
	require.NotEmpty(t, video)
	assert.NoFileExists(t, video, "downloaded video must be deleted")
	assert.NoFileExists(t, domain.PreprocessedPath(video), "normalized copy must be deleted")
	assert.NoFileExists(t, domain.StripExt(video)+"_extracted.mp3", "extracted audio must be deleted")
}

func TestCaptionJob_CleansUpOnFailure(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)
	f.model.err = errors.New("generation exploded")

	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
	})

	video := f.retriever.lastDest
	require.NotEmpty(t, video)
	assert.NoFileExists(t, video)
	assert.NoFileExists(t, domain.PreprocessedPath(video))
	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.payloads[0].Message, "ERROR: ")
}

func TestCaptionJob_DeliveryFailureIsSwallowed(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)
	f.notifier.err = &domain.DeliveryError{Err: errors.New("endpoint down")}

	// Must not panic and must still attempt exactly one delivery.
	f.orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
	})

	assert.Equal(t, 1, f.notifier.count())
}

func TestCaptionJob_GuardrailOffSkipsAudio(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)
	engine := testEngine(t, f.model, f.transcoder)
	policy := NewAudioPolicy(testLogger(), f.retriever, f.transcoder, AudioModeExtract, []string{".mp3"})
	orch := NewOrchestrator(
		testLogger(), f.retriever, policy, f.transcriber, engine, f.chat, f.notifier,
		false,
		ChatDefaults{SystemPrompt: "sys", MaxTokens: 2000, Temperature: 0.7},
	)

	orch.RunCaptionJob(context.Background(), domain.CaptionJob{
		VideoURL: "https://example.com/clip.mp4",
	})

	assert.Equal(t, 0, f.transcoder.extractCalled, "guardrail off: no audio sourcing")
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "a cat on a skateboard", f.notifier.payloads[0].Message)
}

func TestChatJob_ComposedOrderPreserved(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)

	f.orch.RunChatJob(context.Background(), domain.ChatJob{
		JobID:          "chat-1",
		Message:        "continue",
		History:        []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
		InitialContent: "the old caption",
	})

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "refined caption", f.notifier.payloads[0].Message)

	msgs := f.chat.messages
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, "default system", msgs[0].Content)
	assert.Equal(t, domain.RoleSystem, msgs[1].Role)
	assert.Equal(t, "Initial content from user:\n\nthe old caption", msgs[1].Content)
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "hi"}, msgs[2])
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "continue"}, msgs[3])
}

func TestChatJob_DefaultsAppliedWhenUnset(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)

	f.orch.RunChatJob(context.Background(), domain.ChatJob{
		JobID:   "chat-2",
		Message: "hello",
	})

	assert.Equal(t, 2000, f.chat.maxTokens)
	assert.InDelta(t, 0.7, f.chat.temp, 0.001)
}

func TestChatJob_OverridesRespected(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)

	f.orch.RunChatJob(context.Background(), domain.ChatJob{
		JobID:        "chat-3",
		Message:      "hello",
		SystemPrompt: "be terse",
		MaxTokens:    128,
		Temperature:  0.2,
	})

	assert.Equal(t, 128, f.chat.maxTokens)
	assert.InDelta(t, 0.2, f.chat.temp, 0.001)
	assert.Equal(t, "be terse", f.chat.messages[0].Content)
}

func TestChatJob_NoProviderDeliversError(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)
	engine := testEngine(t, f.model, f.transcoder)
	policy := NewAudioPolicy(testLogger(), f.retriever, f.transcoder, AudioModeExtract, []string{".mp3"})
	orch := NewOrchestrator(
		testLogger(), f.retriever, policy, f.transcriber, engine, nil, f.notifier,
		true,
		ChatDefaults{SystemPrompt: "sys", MaxTokens: 2000, Temperature: 0.7},
	)

	orch.RunChatJob(context.Background(), domain.ChatJob{JobID: "chat-4", Message: "hello"})

	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.payloads[0].Message, "ERROR: ")
	assert.Contains(t, f.notifier.payloads[0].Message, "LLM client not initialized")
}

func TestChatJob_ProviderErrorDeliversErrorOnce(t *testing.T) {
	f := newOrchFixture(t, AudioModeExtract)
	f.chat.err = &domain.ChatAPIError{Provider: "groq", Err: errors.New("rate limited")}

	f.orch.RunChatJob(context.Background(), domain.ChatJob{JobID: "chat-5", Message: "hello"})

	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.payloads[0].Message, "ERROR: ")
	assert.Contains(t, f.notifier.payloads[0].Message, "rate limited")
}

func TestTempVideoPath_ExtensionHandling(t *testing.T) {
	path, err := tempVideoPath("https://example.com/v/clip.webm?X-Amz-Signature=abc")
	require.NoError(t, err)
	defer os.Remove(path)
	assert.True(t, len(path) > 5 && path[len(path)-5:] == ".webm", "query string must not leak into the extension: %s", path)

	path2, err := tempVideoPath("https://example.com/stream")
	require.NoError(t, err)
	defer os.Remove(path2)
	assert.True(t, len(path2) > 4 && path2[len(path2)-4:] == ".mp4", "default extension is .mp4: %s", path2)
}
