package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"datagage/internal/config"
)

type Anthropic struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewAnthropic(cfg config.LLMConfig, hc *http.Client) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

func (p *Anthropic) Name() string { return "anthropic" }

func (p *Anthropic) params(pr Prompt) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: pr.System}},
		Temperature: anthropic.Float(p.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(pr.User)),
		},
	}
}

func (p *Anthropic) Complete(ctx context.Context, pr Prompt) (string, error) {
	msg, err := p.client.Messages.New(ctx, p.params(pr))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (p *Anthropic) Stream(ctx context.Context, pr Prompt) (Stream, error) {
	s := p.client.Messages.NewStreaming(ctx, p.params(pr))
	if err := s.Err(); err != nil {
		return nil, err
	}
	return &anthropicStream{s: s}, nil
}

type anthropicStream struct {
	s     chunkStream[anthropic.MessageStreamEventUnion]
	chunk string
}

func (s *anthropicStream) Next() bool {
	for s.s.Next() {
		ev, ok := s.s.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
			s.chunk = d.Text
			return true
		}
	}
	return false
}

func (s *anthropicStream) Chunk() string { return s.chunk }
func (s *anthropicStream) Err() error    { return s.s.Err() }
func (s *anthropicStream) Close() error  { return s.s.Close() }
