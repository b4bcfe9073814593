package llm

import (
	"os"
	"strings"

	"github.com/framehook/captiond/internal/core/domain"
	"github.com/framehook/captiond/internal/core/ports"
)

// providerSpec is one row of the static provider table: where the
// credential and model overrides come from, and which wire shape the
// backend speaks.
type providerSpec struct {
	apiKeyEnv    string
	modelEnv     string
	defaultModel string
	baseURL      string // "" = library default; overridable per provider
	baseURLEnv   string // optional env override for the base endpoint
	systemField  bool   // dedicated system field instead of flat list
}

var providerTable = map[string]providerSpec{
	"openai": {
		apiKeyEnv:    "OPENAI_API_KEY",
		modelEnv:     "OPENAI_MODEL",
		defaultModel: "gpt-4o-mini",
		baseURLEnv:   "OPENAI_BASE_URL",
	},
	"groq": {
		apiKeyEnv:    "GROQ_API_KEY",
		modelEnv:     "GROQ_MODEL",
		defaultModel: "llama-3.3-70b-versatile",
		baseURL:      "https://api.groq.com/openai/v1",
	},
	"together": {
		apiKeyEnv:    "TOGETHER_API_KEY",
		modelEnv:     "TOGETHER_MODEL",
		defaultModel: "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
		baseURL:      "https://api.together.xyz/v1",
	},
	"openrouter": {
		apiKeyEnv:    "OPENROUTER_API_KEY",
		modelEnv:     "OPENROUTER_MODEL",
		defaultModel: "anthropic/claude-3.5-sonnet",
		baseURL:      "https://openrouter.ai/api/v1",
	},
	"anthropic": {
		apiKeyEnv:    "ANTHROPIC_API_KEY",
		modelEnv:     "ANTHROPIC_MODEL",
		defaultModel: "claude-3-5-sonnet-20241022",
		systemField:  true,
	},
}

// Build resolves the selected provider from the static table and
// constructs its client. An unknown provider or a missing credential is
// a construction failure, never a per-request one.
func Build(provider string) (ports.ChatProvider, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	spec, ok := providerTable[name]
	if !ok {
		return nil, &domain.ProviderConfigError{Provider: name, Reason: "unknown provider"}
	}

	apiKey := os.Getenv(spec.apiKeyEnv)
	if apiKey == "" {
		return nil, &domain.ProviderConfigError{Provider: name, Reason: spec.apiKeyEnv + " not set"}
	}

	model := os.Getenv(spec.modelEnv)
	if model == "" {
		model = spec.defaultModel
	}

	if spec.systemField {
		return NewAnthropicProvider(apiKey, model), nil
	}

	baseURL := spec.baseURL
	if spec.baseURLEnv != "" {
		if v := os.Getenv(spec.baseURLEnv); v != "" {
			baseURL = v
		}
	}
	return NewOpenAICompatProvider(name, apiKey, model, baseURL), nil
}
