package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/framehook/captiond/internal/core/domain"
	"github.com/framehook/captiond/internal/core/ports"
)

// ChatDefaults are the generation settings used when a chat request
// carries no overrides.
type ChatDefaults struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

// Orchestrator runs the caption and chat pipelines. For every accepted
// job it delivers exactly one terminal webhook payload — caption text,
// chat reply, or "ERROR: <detail>" — and deletes every temporary
// artifact the job created, regardless of which stage failed.
type Orchestrator struct {
	logger       *slog.Logger
	retriever    ports.Retriever
	policy       *AudioPolicy
	transcriber  ports.Transcriber // nil when the capability is not configured
	engine       *CaptionEngine
	chat         ports.ChatProvider // nil when the capability is not configured
	notifier     ports.Notifier
	useGuardrail bool
	chatDefaults ChatDefaults
}

func NewOrchestrator(
	logger *slog.Logger,
	retriever ports.Retriever,
	policy *AudioPolicy,
	transcriber ports.Transcriber,
	engine *CaptionEngine,
	chat ports.ChatProvider,
	notifier ports.Notifier,
	useGuardrail bool,
	chatDefaults ChatDefaults,
) *Orchestrator {
	return &Orchestrator{
		logger:       logger,
		retriever:    retriever,
		policy:       policy,
		transcriber:  transcriber,
		engine:       engine,
		chat:         chat,
		notifier:     notifier,
		useGuardrail: useGuardrail,
		chatDefaults: chatDefaults,
	}
}

// ChatAvailable reports whether the chat capability was initialized.
func (o *Orchestrator) ChatAvailable() bool { return o.chat != nil }

// TranscriberAvailable reports whether transcription was initialized.
func (o *Orchestrator) TranscriberAvailable() bool { return o.transcriber != nil }

// RunCaptionJob executes download → (audio) → caption → deliver for one
// accepted job, then releases the job's artifacts.
func (o *Orchestrator) RunCaptionJob(ctx context.Context, job domain.CaptionJob) {
	o.logger.Info("starting caption job", "job_id", job.JobID, "video_url", job.VideoURL)

	var artifacts []string
	defer func() { o.cleanup(artifacts) }()

	caption, err := o.runCaptionStages(ctx, job, &artifacts)

	message := caption
	if err != nil {
		o.logger.Error("caption job failed", "job_id", job.JobID, "stage", domain.StageFailed, "error", err)
		message = "ERROR: " + err.Error()
	}
	o.deliver(ctx, message, job.JobID)

	if err == nil {
		o.logger.Info("caption job completed", "job_id", job.JobID, "stage", domain.StageDone)
	}
}

func (o *Orchestrator) runCaptionStages(ctx context.Context, job domain.CaptionJob, artifacts *[]string) (string, error) {
	o.stage(job.JobID, domain.StageAccepted)
	videoPath, err := tempVideoPath(job.VideoURL)
	if err != nil {
		return "", fmt.Errorf("failed to allocate temp file: %w", err)
	}
	*artifacts = append(*artifacts, videoPath)

	o.stage(job.JobID, domain.StageRetrieving)
	if err := o.retriever.Fetch(ctx, job.VideoURL, videoPath); err != nil {
		return "", err
	}

	// Soft stage: never fails the job.
	transcript := ""
	if o.useGuardrail && o.transcriber != nil {
		o.stage(job.JobID, domain.StageSourcingAudio)
		if res := o.policy.Resolve(ctx, videoPath, job.VideoURL); res.Path != "" {
			*artifacts = append(*artifacts, res.Path)
			text, err := o.transcriber.Transcribe(ctx, res.Path)
			if err != nil {
				o.logger.Warn("transcription degraded, captioning without transcript",
					"job_id", job.JobID, "source", res.Source, "error", err)
			} else {
				transcript = text
			}
		}
	}

	o.stage(job.JobID, domain.StageCaptioning)
	return o.engine.Caption(ctx, videoPath, transcript)
}

// RunChatJob executes compose → generate → deliver for one accepted
// chat request. No temporary artifacts are involved.
func (o *Orchestrator) RunChatJob(ctx context.Context, job domain.ChatJob) {
	o.logger.Info("starting chat job", "job_id", job.JobID)

	reply, err := o.runChatStages(ctx, job)

	message := reply
	if err != nil {
		o.logger.Error("chat job failed", "job_id", job.JobID, "stage", domain.StageFailed, "error", err)
		message = "ERROR: " + err.Error()
	}
	o.deliver(ctx, message, job.JobID)

	if err == nil {
		o.logger.Info("chat job completed", "job_id", job.JobID, "stage", domain.StageDone)
	}
}

func (o *Orchestrator) runChatStages(ctx context.Context, job domain.ChatJob) (string, error) {
	if o.chat == nil {
		return "", domain.ErrChatUnavailable
	}

	o.stage(job.JobID, domain.StageComposing)
	messages := o.composeChat(job)

	maxTokens := job.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.chatDefaults.MaxTokens
	}
	temperature := job.Temperature
	if temperature <= 0 {
		temperature = o.chatDefaults.Temperature
	}

	o.stage(job.JobID, domain.StageGenerating)
	return o.chat.Chat(ctx, messages, maxTokens, temperature)
}

// composeChat builds the ordered message sequence: override-or-default
// system prompt, optional seed-content system note, caller history in
// original order, then the new user message.
func (o *Orchestrator) composeChat(job domain.ChatJob) []domain.ChatMessage {
	system := job.SystemPrompt
	if system == "" {
		system = o.chatDefaults.SystemPrompt
	}

	messages := []domain.ChatMessage{{Role: domain.RoleSystem, Content: system}}
	if job.InitialContent != "" {
		messages = append(messages, domain.ChatMessage{
			Role:    domain.RoleSystem,
			Content: "Initial content from user:\n\n" + job.InitialContent,
		})
	}
	messages = append(messages, job.History...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: job.Message})
	return messages
}

// deliver sends the single terminal payload. Notifier failures are
// logged and swallowed: there is no secondary channel to report that the
// report itself failed.
func (o *Orchestrator) deliver(ctx context.Context, message, jobID string) {
	o.stage(jobID, domain.StageDelivering)
	if _, err := o.notifier.Notify(ctx, domain.NewWebhookPayload(message, jobID)); err != nil {
		o.logger.Error("delivery failed", "job_id", jobID, "error", err)
	}
}

func (o *Orchestrator) stage(jobID string, stage domain.Stage) {
	o.logger.Debug("stage", "job_id", jobID, "stage", stage)
}

// cleanup removes every artifact the job created, plus the normalized
// derivative each may have spawned. Best effort, logged.
func (o *Orchestrator) cleanup(artifacts []string) {
	for _, path := range artifacts {
		o.removeFile(path)
		if derived := domain.PreprocessedPath(path); derived != path {
			o.removeFile(derived)
		}
	}
}

func (o *Orchestrator) removeFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		o.logger.Warn("cleanup failed", "path", path, "error", err)
		return
	}
	o.logger.Debug("cleaned up", "path", path)
}

// tempVideoPath allocates a unique local path carrying the extension of
// the source reference, defaulting to .mp4 when the reference has none.
func tempVideoPath(videoURL string) (string, error) {
	ref := videoURL
	if idx := strings.Index(ref, "?"); idx >= 0 {
		ref = ref[:idx]
	}
	ext := filepath.Ext(ref)
	if ext == "" {
		ext = ".mp4"
	}

	path := filepath.Join(os.TempDir(), "captiond-"+uuid.NewString()+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return path, nil
}
