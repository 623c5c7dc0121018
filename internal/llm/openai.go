package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"datagage/internal/config"
)

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewOpenAI(cfg config.LLMConfig, hc *http.Client) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) params(pr Prompt) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(pr.System),
			openai.UserMessage(pr.User),
		},
		Temperature: openai.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(p.maxTokens)
	}
	return params
}

func (p *OpenAI) Complete(ctx context.Context, pr Prompt) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(pr))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAI) Stream(ctx context.Context, pr Prompt) (Stream, error) {
	s := p.client.Chat.Completions.NewStreaming(ctx, p.params(pr))
	if err := s.Err(); err != nil {
		return nil, err
	}
	return &openAIStream{s: s}, nil
}

type chunkStream[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}

type openAIStream struct {
	s     chunkStream[openai.ChatCompletionChunk]
	chunk string
}

func (s *openAIStream) Next() bool {
	for s.s.Next() {
		ev := s.s.Current()
		if len(ev.Choices) == 0 || ev.Choices[0].Delta.Content == "" {
			continue
		}
		s.chunk = ev.Choices[0].Delta.Content
		return true
	}
	return false
}

func (s *openAIStream) Chunk() string { return s.chunk }
func (s *openAIStream) Err() error    { return s.s.Err() }
func (s *openAIStream) Close() error  { return s.s.Close() }
