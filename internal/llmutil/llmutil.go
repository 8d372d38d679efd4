// Package llmutil builds the chat model client used for intent
// classification from viper settings.
package llmutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/llm"
	openaiProvider "github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/providers/openai"
	"github.com/spf13/viper"
)

type ClientConfig struct {
	Provider       string
	Endpoint       string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

func ProviderFromViper() string {
	return normalizeProvider(viper.GetString("llm.provider"))
}

func EndpointFromViper() string {
	return EndpointForProvider(ProviderFromViper())
}

func ModelFromViper() string {
	return strings.TrimSpace(viper.GetString("llm.model"))
}

// EndpointForProvider returns the configured endpoint, or the public
// endpoint of providers that speak the OpenAI chat completions API.
func EndpointForProvider(provider string) string {
	if endpoint := strings.TrimSpace(viper.GetString("llm.endpoint")); endpoint != "" {
		return endpoint
	}
	switch normalizeProvider(provider) {
	case "deepseek":
		return "https://api.deepseek.com"
	case "xai":
		return "https://api.x.ai"
	case "ollama":
		return "http://127.0.0.1:11434"
	default:
		return "https://api.openai.com"
	}
}

func ConfigFromViper() ClientConfig {
	provider := ProviderFromViper()
	return ClientConfig{
		Provider:       provider,
		Endpoint:       EndpointForProvider(provider),
		APIKey:         strings.TrimSpace(viper.GetString("llm.api_key")),
		Model:          ModelFromViper(),
		RequestTimeout: viper.GetDuration("llm.request_timeout"),
	}
}

func ClientFromConfig(cfg ClientConfig) (llm.Client, error) {
	switch normalizeProvider(cfg.Provider) {
	case "openai", "openai_custom", "deepseek", "xai", "ollama":
		if strings.TrimSpace(cfg.Model) == "" {
			return nil, fmt.Errorf("missing llm.model")
		}
		return openaiProvider.New(cfg.Endpoint, cfg.APIKey, cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "openai"
	}
	return provider
}
