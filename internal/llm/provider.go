// Package llm wraps the chat-completion providers used for narrative
// insights behind one small interface.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"datagage/internal/config"
)

// Prompt is a single-turn request: one system and one user message.
type Prompt struct {
	System string
	User   string
}

// Stream yields content deltas until Next returns false. Err reports why
// the stream stopped early; Close must always be called.
type Stream interface {
	Next() bool
	Chunk() string
	Err() error
	Close() error
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
	Stream(ctx context.Context, p Prompt) (Stream, error)
}

const (
	defaultOpenAIBaseURL  = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	defaultOpenAIModel    = "qwen2.5-72b-instruct"
	defaultAnthropicModel = "claude-sonnet-4-5"
)

const (
	kindOpenAI    = "openai"
	kindAnthropic = "anthropic"
)

func providerKind(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openai", "dashscope", "qwen":
		return kindOpenAI, nil
	case "anthropic", "claude":
		return kindAnthropic, nil
	}
	return "", fmt.Errorf("unknown llm provider %q", name)
}

// WithDefaults fills a blank model and base URL with the provider's own
// defaults. Anthropic keeps a blank base URL so the SDK default applies.
func WithDefaults(cfg config.LLMConfig) (config.LLMConfig, error) {
	kind, err := providerKind(cfg.Provider)
	if err != nil {
		return cfg, err
	}
	cfg.Provider = kind
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	switch kind {
	case kindOpenAI:
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOpenAIBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
	case kindAnthropic:
		if cfg.Model == "" {
			cfg.Model = defaultAnthropicModel
		}
	}
	return cfg, nil
}

// New returns the configured provider, or nil when no API key is set.
func New(cfg config.LLMConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil
	}
	cfg, err := WithDefaults(cfg)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if cfg.Provider == kindAnthropic {
		return NewAnthropic(cfg, hc), nil
	}
	return NewOpenAI(cfg, hc), nil
}
