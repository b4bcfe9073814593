package domain

// Stage identifies where a caption job currently is in its pipeline.
type Stage string

const (
	StageAccepted      Stage = "ACCEPTED"
	StageRetrieving    Stage = "RETRIEVING"
	StageSourcingAudio Stage = "SOURCING_AUDIO"
	StageCaptioning    Stage = "CAPTIONING"
	StageComposing     Stage = "COMPOSING"
	StageGenerating    Stage = "GENERATING"
	StageDelivering    Stage = "DELIVERING"
	StageDone          Stage = "DONE"
	StageFailed        Stage = "FAILED"
)

// CaptionJob is one accepted captioning request. JobID is caller-supplied
// and optional; when empty the webhook payload carries a null id.
type CaptionJob struct {
	VideoURL string `json:"video_url"`
	JobID    string `json:"job_id,omitempty"`
}

// ChatJob is one accepted conversational refinement request.
type ChatJob struct {
	JobID          string        `json:"job_id"`
	Message        string        `json:"message"`
	History        []ChatMessage `json:"history,omitempty"`
	InitialContent string        `json:"initial_content,omitempty"`
	SystemPrompt   string        `json:"system_prompt,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float32       `json:"temperature,omitempty"`
}

// WebhookPayload is the single terminal report sent per job.
// Message holds the caption text, the chat reply, or "ERROR: <detail>".
type WebhookPayload struct {
	Message string  `json:"message"`
	ID      *string `json:"id"`
}

// NewWebhookPayload builds a payload, mapping an empty job id to null.
func NewWebhookPayload(message, jobID string) WebhookPayload {
	p := WebhookPayload{Message: message}
	if jobID != "" {
		p.ID = &jobID
	}
	return p
}
