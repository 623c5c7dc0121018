package metabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSigner_DashboardClaims(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewSigner("https://bi.test/", "secret", 0)
	s.now = func() time.Time { return fixed }

	u, err := s.DashboardURL(7, EmbedParams{Product: "Widget"})
	if err != nil {
		t.Fatalf("DashboardURL: %v", err)
	}
	prefix := "https://bi.test/embed/dashboard/"
	suffix := "#bordered=true&titled=true"
	if !strings.HasPrefix(u, prefix) || !strings.HasSuffix(u, suffix) {
		t.Fatalf("url=%s", u)
	}
	tok := strings.TrimSuffix(strings.TrimPrefix(u, prefix), suffix)

	claims, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Resource["dashboard"] != 7 {
		t.Fatalf("resource=%v", claims.Resource)
	}
	want := EmbedParams{TimeRange: "12", Product: "Widget", Customer: "all"}
	if claims.Params != want {
		t.Fatalf("params=%+v want=%+v", claims.Params, want)
	}
	if got := claims.ExpiresAt.Time; !got.Equal(fixed.Add(10 * time.Minute)) {
		t.Fatalf("exp=%s", got)
	}
}

func TestSigner_RejectsBadInput(t *testing.T) {
	if _, err := NewSigner("https://bi.test", "", 0).DashboardToken(1, EmbedParams{}); err != ErrMissingSecret {
		t.Fatalf("err=%v want ErrMissingSecret", err)
	}
	if _, err := NewSigner("https://bi.test", "k", 0).DashboardToken(0, EmbedParams{}); err == nil {
		t.Fatalf("expected error for dashboard id 0")
	}
	other := NewSigner("https://bi.test", "other", 0)
	tok, _ := other.QuestionToken(3, EmbedParams{})
	if _, err := NewSigner("https://bi.test", "k", 0).Verify(tok); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestClient_LoginAndCreateDashboard(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/session":
			logins.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["username"] != "admin" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"id":"sess-1"}`)
		case "/api/dashboard":
			if r.Header.Get(sessionHeader) != "sess-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"id":42,"name":"Sales Analytics Dashboard"}`)
		case "/api/database/2/tables":
			_, _ = io.WriteString(w, `[{"id":1,"name":"users"},{"id":9,"name":"sales"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "admin", "pw", time.Second)
	d, err := c.CreateDashboard(context.Background(), "Sales Analytics Dashboard", "")
	if err != nil {
		t.Fatalf("CreateDashboard: %v", err)
	}
	if d.ID != 42 {
		t.Fatalf("id=%d want=42", d.ID)
	}
	tables, err := c.ListTables(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(tables) != 2 || tables[1].Name != "sales" {
		t.Fatalf("tables=%+v", tables)
	}
	if logins.Load() != 1 {
		t.Fatalf("logins=%d want=1", logins.Load())
	}
}
