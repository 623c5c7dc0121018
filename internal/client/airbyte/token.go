package airbyte

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"datagage/internal/metrics"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

const defaultTokenTimeout = 15 * time.Second

// applicationTokenSource exchanges the application's client credentials for
// a bearer token. It is always wrapped in oauth2.ReuseTokenSource.
//
// The token is shared by every request, so the exchange is not tied to the
// request that happened to trigger it. It runs on its own context bounded
// by Client.TokenTimeout instead.
type applicationTokenSource struct {
	c *Client
}

func (s *applicationTokenSource) Token() (*oauth2.Token, error) {
	c := s.c
	timeout := c.TokenTimeout
	if timeout <= 0 {
		timeout = defaultTokenTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	body, _ := json.Marshal(map[string]any{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"grant-type":    "client_credentials",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/applications/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		metrics.ObserveUpstream(upstreamName, "token", 0, time.Since(start))
		return nil, fmt.Errorf("airbyte token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ObserveUpstream(upstreamName, "token", resp.StatusCode, time.Since(start))

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Op: "token", StatusCode: resp.StatusCode, Body: string(b)}
	}
	var tr tokenResponse
	if err := json.Unmarshal(b, &tr); err != nil {
		return nil, fmt.Errorf("airbyte token: decode: %w", err)
	}
	if strings.TrimSpace(tr.AccessToken) == "" {
		return nil, fmt.Errorf("airbyte token: empty access_token")
	}
	tok := &oauth2.Token{AccessToken: strings.TrimSpace(tr.AccessToken), TokenType: "Bearer"}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}
