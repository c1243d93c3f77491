package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type AnthropicTranslator struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

func NewAnthropicTranslator(cfg AnthropicConfig) (*AnthropicTranslator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var opts []anthropic.ClientOption
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &AnthropicTranslator{
		client:  anthropic.NewClient(strings.TrimSpace(cfg.APIKey), opts...),
		model:   model,
		timeout: timeout,
	}, nil
}

func (t *AnthropicTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	prompt := BuildPrompt(req)
	resp, err := t.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(t.model),
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("create message: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Result{}, ErrEmptyResponse
	}
	return Result{
		Text:     text.String(),
		Provider: ProviderAnthropic,
		Model:    t.model,
	}, nil
}
