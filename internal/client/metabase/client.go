// Package metabase talks to a Metabase instance: session login, dashboard
// and card creation, and signed embed URLs.
package metabase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"datagage/internal/metrics"
)

const sessionHeader = "X-Metabase-Session"

type Client struct {
	SiteURL  string
	Username string
	Password string

	http *resty.Client

	mu      sync.RWMutex
	session string
}

func New(siteURL, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	return &Client{
		SiteURL:  base,
		Username: username,
		Password: password,
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// APIError is a non-2xx answer from Metabase.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metabase %s http %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

type Table struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Schema string `json:"schema,omitempty"`
}

type Dashboard struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Card struct {
	Name                  string         `json:"name"`
	Display               string         `json:"display"`
	VisualizationSettings map[string]any `json:"visualization_settings"`
	DatasetQuery          DatasetQuery   `json:"dataset_query"`
	SizeX                 int            `json:"size_x"`
	SizeY                 int            `json:"size_y"`
}

type DatasetQuery struct {
	Type     string         `json:"type"`
	Query    map[string]any `json:"query"`
	Database int            `json:"database"`
}

type DashboardCard struct {
	CardID int `json:"cardId"`
	Row    int `json:"row"`
	Col    int `json:"col"`
	SizeX  int `json:"size_x"`
	SizeY  int `json:"size_y"`
}

// Login opens a session with the configured user and keeps it for later
// calls.
func (c *Client) Login(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return "", errors.New("metabase credentials are not configured")
	}
	var out struct {
		ID string `json:"id"`
	}
	resp, err := c.call(ctx, "").
		SetBody(map[string]string{"username": c.Username, "password": c.Password}).
		SetResult(&out).
		Post("/api/session")
	if err := c.check("login", resp, err); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("metabase login: empty session id")
	}
	c.mu.Lock()
	c.session = out.ID
	c.mu.Unlock()
	return out.ID, nil
}

func (c *Client) sessionID(ctx context.Context) (string, error) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	if s != "" {
		return s, nil
	}
	return c.Login(ctx)
}

func (c *Client) CreateDashboard(ctx context.Context, name, description string) (*Dashboard, error) {
	s, err := c.sessionID(ctx)
	if err != nil {
		return nil, err
	}
	var out Dashboard
	resp, err := c.call(ctx, s).
		SetBody(map[string]string{"name": name, "description": description}).
		SetResult(&out).
		Post("/api/dashboard")
	if err := c.check("create dashboard", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTables(ctx context.Context, databaseID int) ([]Table, error) {
	s, err := c.sessionID(ctx)
	if err != nil {
		return nil, err
	}
	var out []Table
	resp, err := c.call(ctx, s).
		SetResult(&out).
		Get("/api/database/" + strconv.Itoa(databaseID) + "/tables")
	if err := c.check("list tables", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCard saves a question and returns its id.
func (c *Client) CreateCard(ctx context.Context, card Card) (int, error) {
	s, err := c.sessionID(ctx)
	if err != nil {
		return 0, err
	}
	var out struct {
		ID int `json:"id"`
	}
	resp, err := c.call(ctx, s).
		SetBody(card).
		SetResult(&out).
		Post("/api/card")
	if err := c.check("create card", resp, err); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) AddCard(ctx context.Context, dashboardID int, card DashboardCard) error {
	s, err := c.sessionID(ctx)
	if err != nil {
		return err
	}
	resp, err := c.call(ctx, s).
		SetBody(card).
		Post("/api/dashboard/" + strconv.Itoa(dashboardID) + "/cards")
	return c.check("add card", resp, err)
}

func (c *Client) call(ctx context.Context, session string) *resty.Request {
	r := c.http.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if session != "" {
		r.SetHeader(sessionHeader, session)
	}
	return r
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	var elapsed time.Duration
	status := 0
	if resp != nil {
		elapsed = resp.Time()
		status = resp.StatusCode()
	}
	metrics.ObserveUpstream("metabase", op, status, elapsed)
	if err != nil {
		return fmt.Errorf("metabase %s: %w", op, err)
	}
	if resp.IsError() {
		if resp.StatusCode() == 401 {
			c.mu.Lock()
			c.session = ""
			c.mu.Unlock()
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
