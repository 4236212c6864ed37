// Package chat answers emergency questions through an OpenAI compatible
// chat completion API.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

var (
	ErrNotConfigured = errors.New("chat: assistant is not configured")
	// ErrUpstream wraps failures reported by the completion API.
	ErrUpstream = errors.New("chat: upstream error")
	ErrEmpty    = errors.New("chat: empty completion")
)

const SystemPrompt = `You are an AI Emergency Assistant for a disaster response application. Your primary role is to provide immediate, helpful guidance during emergencies while directing users to call appropriate emergency services.

Key guidelines:
1. Always prioritize user safety and direct to professional emergency services
2. Provide clear, concise information without causing panic
3. For medical emergencies: Direct to call 118 (ambulance)
4. For police/fire emergencies: Direct to call 117
5. For natural disasters: Provide general safety advice and direct to official sources
6. Be empathetic and supportive
7. If unsure about specific medical advice, always recommend professional help
8. Keep responses focused on emergency assistance and preparedness

Emergency numbers (Philippines context):
- Ambulance/Medical: 118
- Police/Fire: 117
- General Emergency: 117

Remember: You are not a replacement for professional emergency services. Always encourage calling the appropriate emergency number.`

// Completer produces an assistant reply for a single user message.
type Completer interface {
	Complete(ctx context.Context, message string) (string, error)
}

// Config selects the model and endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	MaxRetries  int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "gpt-3.5-turbo"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 500
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Assistant implements Completer over openai-go.
type Assistant struct {
	client  *openai.Client
	cfg     Config
	enabled bool
}

// New builds an Assistant. Without an API key every call fails with
// ErrNotConfigured.
func New(cfg Config) *Assistant {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" || cfg.APIKey == "your-openai-api-key-here" {
		return &Assistant{cfg: cfg}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &Assistant{client: &client, cfg: cfg, enabled: true}
}

// Enabled reports whether an API key was configured.
func (a *Assistant) Enabled() bool { return a.enabled }

func (a *Assistant) Complete(ctx context.Context, message string) (string, error) {
	if !a.enabled {
		return "", ErrNotConfigured
	}
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(message),
		},
		Model:       shared.ChatModel(a.cfg.Model),
		MaxTokens:   param.NewOpt(a.cfg.MaxTokens),
		Temperature: param.NewOpt(a.cfg.Temperature),
		TopP:        param.NewOpt(1.0),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d", ErrUpstream, apiErr.StatusCode)
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmpty
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
