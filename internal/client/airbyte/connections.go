package airbyte

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

func (c *Client) CreateConnection(ctx context.Context, req CreateConnectionRequest) (*Connection, error) {
	if req.SourceID == "" {
		return nil, errors.New("airbyte create connection: source id is empty")
	}
	if req.DestinationID == "" {
		return nil, errors.New("airbyte create connection: destination id is empty")
	}
	schedule := DailySchedule()
	if req.Schedule != nil {
		schedule = *req.Schedule
	}
	body := createConnectionBody{
		Name:                req.SourceID + "_to_postgres",
		NamespaceDefinition: "source",
		NamespaceFormat:     "${SOURCE_NAMESPACE}",
		Prefix:              "",
		SourceID:            req.SourceID,
		DestinationID:       req.DestinationID,
		OperationIDs:        []string{},
		SyncCatalog:         req.SyncCatalog,
		Schedule:            schedule,
		Status:              "active",
	}
	b, err := c.do(ctx, "create connection", http.MethodPost, "/connections", nil, body)
	if err != nil {
		return nil, err
	}
	var out Connection
	if err := decode("create connection", b, &out); err != nil {
		return nil, err
	}
	if out.ConnectionID == "" {
		return nil, &UpstreamError{Op: "create connection", StatusCode: http.StatusBadGateway, Body: "response has no connectionId"}
	}
	return &out, nil
}

func (c *Client) ListConnections(ctx context.Context) ([]Connection, error) {
	ws, err := c.ResolveWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	b, err := c.do(ctx, "list connections", http.MethodGet, "/connections", url.Values{"workspaceId": {ws}}, nil)
	if err != nil {
		return nil, err
	}
	var env listEnvelope[Connection]
	if err := decode("list connections", b, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ConnectionsForSource lists the workspace connections that read from
// sourceID.
func (c *Client) ConnectionsForSource(ctx context.Context, sourceID string) ([]Connection, error) {
	all, err := c.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(all))
	for _, conn := range all {
		if conn.SourceID == sourceID {
			out = append(out, conn)
		}
	}
	return out, nil
}

// DeleteConnection removes a connection. A connection that is already gone
// counts as deleted.
func (c *Client) DeleteConnection(ctx context.Context, connectionID string) error {
	_, err := c.do(ctx, "delete connection", http.MethodDelete, "/connections/"+url.PathEscape(connectionID), nil, nil)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

func (c *Client) ConnectionStatus(ctx context.Context, connectionID string) (*ConnectionStatus, error) {
	b, err := c.do(ctx, "connection status", http.MethodGet, "/connections/"+url.PathEscape(connectionID)+"/status", nil, nil)
	if err != nil {
		return nil, err
	}
	return parseConnectionStatus(connectionID, b), nil
}

func parseConnectionStatus(connectionID string, b []byte) *ConnectionStatus {
	doc := gjson.ParseBytes(b)
	st := &ConnectionStatus{
		ConnectionID:      connectionID,
		Status:            doc.Get("status").String(),
		LastSyncJobStatus: firstString(doc, "lastSyncJobStatus", "latestSyncJobStatus", "lastJob.status"),
		Raw:               append([]byte(nil), b...),
	}
	if id := doc.Get("connectionId").String(); id != "" {
		st.ConnectionID = id
	}
	for _, key := range []string{"lastSuccessfulSync", "lastSuccessfulSyncAt", "lastSyncJobCreatedAt"} {
		if at, ok := parseTimestamp(doc.Get(key)); ok {
			st.LastSuccessfulAt = &at
			break
		}
	}
	return st
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}

// parseTimestamp accepts epoch seconds, epoch milliseconds or RFC 3339.
func parseTimestamp(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		n := v.Int()
		if n <= 0 {
			return time.Time{}, false
		}
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	case gjson.String:
		t, err := time.Parse(time.RFC3339, v.String())
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// TriggerSync starts a manual sync job on a connection.
func (c *Client) TriggerSync(ctx context.Context, connectionID string) (*JobInfo, error) {
	b, err := c.do(ctx, "trigger sync", http.MethodPost, "/connections/"+url.PathEscape(connectionID)+"/sync", nil, map[string]any{})
	if err != nil {
		return nil, err
	}
	var out JobInfo
	if len(b) > 0 {
		if err := decode("trigger sync", b, &out); err != nil {
			return nil, err
		}
	}
	if out.JobID == 0 {
		out.JobID = gjson.GetBytes(b, "job.id").Int()
	}
	return &out, nil
}
