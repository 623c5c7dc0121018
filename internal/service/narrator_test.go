package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"datagage/internal/cache"
	"datagage/internal/llm"
)

type fakeStream struct {
	chunks []string
	err    error
	i      int
	closed *atomic.Bool
}

func (s *fakeStream) Next() bool {
	if s.i >= len(s.chunks) {
		return false
	}
	s.i++
	return true
}

func (s *fakeStream) Chunk() string { return s.chunks[s.i-1] }
func (s *fakeStream) Err() error    { return s.err }
func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeProvider struct {
	text      string
	err       error
	chunks    []string
	streamErr error
	completes atomic.Int32
	closed    atomic.Bool
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, pr llm.Prompt) (string, error) {
	p.completes.Add(1)
	return p.text, p.err
}

func (p *fakeProvider) Stream(ctx context.Context, pr llm.Prompt) (llm.Stream, error) {
	return &fakeStream{chunks: p.chunks, err: p.streamErr, closed: &p.closed}, nil
}

func sampleRequest() InsightRequest {
	row := func(month, product string, rev int64, orders int64) InsightRow {
		return InsightRow{Month: month, Product: product, TotalRevenue: decimal.NewFromInt(rev), TotalOrders: orders}
	}
	return InsightRequest{
		Filter: &InsightFilter{TimeRange: "6", Product: "all", Customer: "Acme"},
		DetailRows: []InsightRow{
			row("2026-01-01", "Widget", 300, 3),
			row("2026-01-01", "Gadget", 100, 1),
			row("2026-03-01", "Widget", 200, 2),
			row("2026-02-01", "Doohickey", 250, 5),
			row("2026-02-01", "Gizmo", 50, 1),
		},
	}
}

func collect(t *testing.T, n *Narrator, req InsightRequest) []Chunk {
	t.Helper()
	var out []Chunk
	err := n.Stream(context.Background(), req, func(c Chunk) error {
		out = append(out, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	return out
}

func TestNarratorStream_ForwardsChunks(t *testing.T) {
	p := &fakeProvider{chunks: []string{"<h3>", "", "Summary</h3>"}}
	got := collect(t, &Narrator{Provider: p}, sampleRequest())
	if len(got) != 3 || got[0].Content != "<h3>" || got[1].Content != "Summary</h3>" || !got[2].Done {
		t.Fatalf("chunks=%+v", got)
	}
	if !p.closed.Load() {
		t.Fatalf("upstream stream not closed")
	}
}

func TestNarratorStream_MidStreamErrorEndsWithDone(t *testing.T) {
	p := &fakeProvider{chunks: []string{"partial"}, streamErr: errors.New("connection reset")}
	got := collect(t, &Narrator{Provider: p}, sampleRequest())
	if len(got) != 3 {
		t.Fatalf("chunks=%+v", got)
	}
	if got[0].Content != "partial" || !strings.Contains(got[1].Error, "connection reset") || !got[2].Done {
		t.Fatalf("chunks=%+v", got)
	}
	if !p.closed.Load() {
		t.Fatalf("upstream stream not closed")
	}
}

func TestNarratorStream_EmitFailureClosesUpstream(t *testing.T) {
	p := &fakeProvider{chunks: []string{"a", "b", "c"}}
	gone := errors.New("client gone")
	n := &Narrator{Provider: p}
	calls := 0
	err := n.Stream(context.Background(), sampleRequest(), func(Chunk) error {
		calls++
		return gone
	})
	if !errors.Is(err, gone) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
	if !p.closed.Load() {
		t.Fatalf("upstream stream not closed")
	}
}

func TestNarratorStream_NoProviderEmitsFallback(t *testing.T) {
	got := collect(t, &Narrator{}, sampleRequest())
	if len(got) != 2 || !strings.Contains(got[0].Content, "Executive Summary") || !got[1].Done {
		t.Fatalf("chunks=%+v", got)
	}
}

func TestNarratorGenerate_FallbackOnProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("quota")}
	in, err := (&Narrator{Provider: p}).Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if in.Source != InsightSourceFallback || in.Text == "" {
		t.Fatalf("insight=%+v", in)
	}
}

func TestNarratorGenerate_CachesByFilterAndRowCount(t *testing.T) {
	p := &fakeProvider{text: "<p>insight</p>"}
	n := &Narrator{Provider: p, Cache: cache.NewMemoryStore()}
	req := sampleRequest()
	for i := 0; i < 2; i++ {
		in, err := n.Generate(context.Background(), req)
		if err != nil || in.Text != "<p>insight</p>" || in.Source != InsightSourceAI {
			t.Fatalf("Generate=%+v,%v", in, err)
		}
	}
	if p.completes.Load() != 1 {
		t.Fatalf("completes=%d want 1", p.completes.Load())
	}
	req.DetailRows = req.DetailRows[:2]
	_, _ = n.Generate(context.Background(), req)
	if p.completes.Load() != 2 {
		t.Fatalf("completes=%d want 2 after row count change", p.completes.Load())
	}
}

func TestNarratorGenerate_NoData(t *testing.T) {
	in, _ := (&Narrator{}).Generate(context.Background(), InsightRequest{})
	if in.Text != "No data available for analysis" {
		t.Fatalf("text=%q", in.Text)
	}
}

func TestFallbackInsight(t *testing.T) {
	text := FallbackInsight(sampleRequest())
	for _, want := range []string{
		"Total revenue of $900.00 across 12 orders (average order value $75.00)",
		"from Jan 2026 to Mar 2026",
		"<li>Widget: $500.00</li>",
		"<li>Doohickey: $250.00</li>",
		"<li>Gadget: $100.00</li>",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("fallback missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Gizmo") {
		t.Fatalf("fallback lists more than three products:\n%s", text)
	}
}

func TestBuildPrompt(t *testing.T) {
	p, err := BuildPrompt(sampleRequest())
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(p.User, "Time period: 6 months, Customer: Acme") {
		t.Fatalf("filter description missing:\n%s", p.User)
	}
	if !strings.Contains(p.User, "Monthly sales analytics from Jan 2026 to Mar 2026") {
		t.Fatalf("date range missing:\n%s", p.User)
	}
	if !strings.HasPrefix(p.System, "You are an elite business intelligence analyst") {
		t.Fatalf("system=%q", p.System[:40])
	}
}
