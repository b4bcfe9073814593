package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPrompt is used when no prompt file is available.
const DefaultPrompt = "Describe this video."

// DefaultChatSystemPrompt steers the conversational refinement path.
const DefaultChatSystemPrompt = `You are a helpful AI assistant that helps users refine and modify video processing steps or captions.
Users may have generated steps or captions from videos, and they want to chat with you to make changes, improvements, or ask questions.
Be concise, helpful, and focus on understanding what changes the user wants to make.`

// VideoExtensions is the fixed set of recognized video formats.
var VideoExtensions = []string{".mp4", ".mov", ".avi", ".webm", ".mkv", ".gif", ".flv"}

// AudioExtensions is the ordered list of sibling-audio extensions tried
// against the basename of a video reference.
var AudioExtensions = []string{".mp3", ".m4a", ".wav", ".flac", ".ogg", ".opus", ".webm"}

// Config is the immutable process configuration, resolved once at
// startup from the environment.
type Config struct {
	ListenAddr string

	// Vision model
	ModelID        string
	Quantization   string // "None", "8-bit", "4-bit"
	AttentionImpl  string
	MaxTokens      int
	PromptFilePath string
	RuntimeURL     string

	// Webhook delivery
	WebhookURL     string
	WebhookTimeout time.Duration
	WebhookSecret  string

	// Object storage
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3Endpoint         string

	// Chat
	LLMProvider      string
	ChatMaxTokens    int
	ChatTemperature  float32
	ChatSystemPrompt string

	// Transcription
	GroqAPIKey   string
	WhisperModel string

	// Audio sourcing
	UseAudioGuardrail   bool
	AudioSourceMode     string // "separate", "extract", "both"
	AudioExtractFormat  string
	AudioExtractBitrate string

	// Scheduling
	JobConcurrency int64
	FFmpegTimeout  time.Duration
}

// FromEnv resolves the full configuration from environment variables,
// applying defaults for everything unset.
func FromEnv() *Config {
	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8501"),

		ModelID:        getEnv("MODEL_ID", "Qwen/Qwen3-VL-8B-Instruct"),
		Quantization:   getEnv("QUANTIZATION", "None"),
		AttentionImpl:  getEnv("ATTENTION_IMPL", "flash_attention_2"),
		MaxTokens:      getEnvInt("MAX_TOKENS", 1024),
		PromptFilePath: getEnv("PROMPT_FILE_PATH", "./prompt.txt"),
		RuntimeURL:     getEnv("VLM_RUNTIME_URL", "http://localhost:8500"),

		WebhookURL:     os.Getenv("RESPONSE_WEBHOOK_URL"),
		WebhookTimeout: time.Duration(getEnvInt("RESULT_API_TIMEOUT", 30)) * time.Second,
		WebhookSecret:  os.Getenv("RESULT_API_KEY"),

		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "groq")),
		ChatMaxTokens:    getEnvInt("CHAT_MAX_TOKENS", 2000),
		ChatTemperature:  getEnvFloat("CHAT_TEMPERATURE", 0.7),
		ChatSystemPrompt: getEnv("CHAT_SYSTEM_PROMPT", DefaultChatSystemPrompt),

		GroqAPIKey:   os.Getenv("GROQ_API_KEY"),
		WhisperModel: getEnv("WHISPER_MODEL", "whisper-large-v3"),

		UseAudioGuardrail:   getEnvBool("USE_AUDIO_GUARDRAIL", true),
		AudioSourceMode:     getEnv("AUDIO_SOURCE_MODE", "extract"),
		AudioExtractFormat:  getEnv("AUDIO_EXTRACT_FORMAT", "mp3"),
		AudioExtractBitrate: getEnv("AUDIO_EXTRACT_BITRATE", "128k"),

		JobConcurrency: int64(getEnvInt("JOB_CONCURRENCY", 1)),
		FFmpegTimeout:  time.Duration(getEnvInt("FFMPEG_TIMEOUT", 300)) * time.Second,
	}
}

// Snapshot returns the non-secret settings for the /config endpoint.
func (c *Config) Snapshot() map[string]any {
	return map[string]any{
		"model_id":             c.ModelID,
		"quantization":         c.Quantization,
		"attention_impl":       c.AttentionImpl,
		"max_tokens":           c.MaxTokens,
		"llm_provider":         c.LLMProvider,
		"audio_guardrail":      c.UseAudioGuardrail,
		"audio_source_mode":    c.AudioSourceMode,
		"audio_extract_format": c.AudioExtractFormat,
		"whisper_model":        c.WhisperModel,
		"job_concurrency":      c.JobConcurrency,
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float32) float32 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
