// Package airbyte is a client for the Airbyte public API: application token
// exchange, workspaces, sources, connections and sync jobs.
package airbyte

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"datagage/internal/metrics"
)

const (
	upstreamName = "airbyte"
	maxBodyBytes = 4 << 20
)

type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// WorkspaceID skips the workspace lookup when set.
	WorkspaceID string

	HTTP *http.Client
	// TokenTimeout bounds one client-credentials exchange. Zero means 15s.
	TokenTimeout time.Duration

	tokMu  sync.Mutex
	tokens oauth2.TokenSource

	wsMu      sync.RWMutex
	workspace string
}

func (c *Client) base() string {
	return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) tokenSource() (oauth2.TokenSource, error) {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return nil, ErrMissingCredentials
	}
	c.tokMu.Lock()
	defer c.tokMu.Unlock()
	if c.tokens == nil {
		c.tokens = oauth2.ReuseTokenSource(nil, &applicationTokenSource{c: c})
	}
	return c.tokens, nil
}

// Authenticate returns a bearer token, exchanging the client credentials on
// first use. The token is reused until it expires or Invalidate is called.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ts, err := c.tokenSource()
	if err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Invalidate drops the cached token.
func (c *Client) Invalidate() {
	c.tokMu.Lock()
	c.tokens = nil
	c.tokMu.Unlock()
}

// ResolveWorkspace returns the configured workspace, or the first workspace
// visible to the application. The lookup result is cached.
func (c *Client) ResolveWorkspace(ctx context.Context) (string, error) {
	if ws := strings.TrimSpace(c.WorkspaceID); ws != "" {
		return ws, nil
	}
	c.wsMu.RLock()
	ws := c.workspace
	c.wsMu.RUnlock()
	if ws != "" {
		return ws, nil
	}

	b, err := c.do(ctx, "list workspaces", http.MethodGet, "/workspaces", nil, nil)
	if err != nil {
		return "", err
	}
	ws = gjson.GetBytes(b, "data.0.workspaceId").String()
	if ws == "" {
		return "", errors.New("airbyte list workspaces: no workspace available")
	}
	c.wsMu.Lock()
	c.workspace = ws
	c.wsMu.Unlock()
	return ws, nil
}

// do sends one authorized request and returns the raw response body. A 401
// invalidates the token and the request is retried once.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, error) {
	if c.base() == "" {
		return nil, errors.New("airbyte base url is empty")
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("airbyte %s: encode: %w", op, err)
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		token, err := c.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		status, b, err := c.send(ctx, op, method, path, query, payload, token)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized && attempt == 0 {
			c.Invalidate()
			continue
		}
		if status < 200 || status >= 300 {
			return nil, &UpstreamError{Op: op, StatusCode: status, Body: string(b)}
		}
		return b, nil
	}
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, payload []byte, token string) (int, []byte, error) {
	u := c.base() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		metrics.ObserveUpstream(upstreamName, op, 0, time.Since(start))
		return 0, nil, fmt.Errorf("airbyte %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveUpstream(upstreamName, op, resp.StatusCode, time.Since(start))

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("airbyte %s: read body: %w", op, err)
	}
	return resp.StatusCode, b, nil
}

func decode(op string, b []byte, out any) error {
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("airbyte %s: decode: %w", op, err)
	}
	return nil
}
