package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultOpenAIModel    = "gpt-5"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
)

// placeholderKeys are sample values shipped in configuration templates.
var placeholderKeys = map[string]struct{}{
	"A_TUA_API_KEY_AQUI": {},
	"YOUR_API_KEY_HERE":  {},
	"YOUR_API_KEY":       {},
	"changeme":           {},
}

type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// CredentialConfigured reports whether key looks like a real credential.
func CredentialConfigured(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	_, placeholder := placeholderKeys[key]
	return !placeholder
}

// New builds the translator for cfg.Provider. Callers check
// CredentialConfigured first; a missing key is reported as an error here.
func New(ctx context.Context, cfg Config) (Translator, error) {
	var (
		translator Translator
		err        error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini, "":
		translator, err = NewGeminiTranslator(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			BaseURL:     cfg.BaseURL,
		})
	case ProviderOpenAI:
		translator, err = NewOpenAITranslator(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case ProviderAnthropic:
		translator, err = NewAnthropicTranslator(AnthropicConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported translation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s translator: %w", cfg.Provider, err)
	}
	return translator, nil
}
