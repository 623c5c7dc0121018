package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"datagage/internal/config"
)

func TestNew_NoKeyMeansNoProvider(t *testing.T) {
	p, err := New(config.LLMConfig{Provider: "openai"})
	if err != nil || p != nil {
		t.Fatalf("New=%v,%v want nil,nil", p, err)
	}
	if _, err := New(config.LLMConfig{Provider: "bard", APIKey: "k"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	p, err = New(config.LLMConfig{Provider: "anthropic", APIKey: "k", Model: "claude"})
	if err != nil || p.Name() != "anthropic" {
		t.Fatalf("New anthropic=%v,%v", p, err)
	}
}

func TestWithDefaults_PerProvider(t *testing.T) {
	cases := []struct {
		name      string
		in        config.LLMConfig
		wantKind  string
		wantModel string
		wantBase  string
	}{
		{"openai blank", config.LLMConfig{Provider: "openai"}, kindOpenAI, defaultOpenAIModel, defaultOpenAIBaseURL},
		{"qwen alias", config.LLMConfig{Provider: "Qwen"}, kindOpenAI, defaultOpenAIModel, defaultOpenAIBaseURL},
		{"anthropic blank", config.LLMConfig{Provider: "anthropic"}, kindAnthropic, defaultAnthropicModel, ""},
		{"anthropic explicit", config.LLMConfig{Provider: "claude", Model: "claude-x", BaseURL: "http://proxy.local"}, kindAnthropic, "claude-x", "http://proxy.local"},
		{"openai explicit", config.LLMConfig{Provider: "openai", Model: "gpt-x", BaseURL: " https://api.openai.com/v1 "}, kindOpenAI, "gpt-x", "https://api.openai.com/v1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WithDefaults(tc.in)
			if err != nil {
				t.Fatalf("WithDefaults: %v", err)
			}
			if got.Provider != tc.wantKind || got.Model != tc.wantModel || got.BaseURL != tc.wantBase {
				t.Fatalf("got provider=%q model=%q base=%q", got.Provider, got.Model, got.BaseURL)
			}
		})
	}
	if _, err := WithDefaults(config.LLMConfig{Provider: "bard"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func openAIServer(t *testing.T, deltas []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"stream":true`) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"<p>ok</p>"}}]}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Complete(t *testing.T) {
	srv := openAIServer(t, nil)
	p := NewOpenAI(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m", Temperature: 0.5, MaxTokens: 100}, srv.Client())
	got, err := p.Complete(context.Background(), Prompt{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "<p>ok</p>" {
		t.Fatalf("got=%q", got)
	}
}

func TestOpenAI_Stream(t *testing.T) {
	srv := openAIServer(t, []string{"<h3>", "Summary", "</h3>"})
	p := NewOpenAI(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}, srv.Client())
	s, err := p.Stream(context.Background(), Prompt{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer s.Close()
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Chunk())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if b.String() != "<h3>Summary</h3>" {
		t.Fatalf("streamed=%q", b.String())
	}
}
