package airbyte

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

func (c *Client) ListSources(ctx context.Context) ([]Source, error) {
	ws, err := c.ResolveWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	b, err := c.do(ctx, "list sources", http.MethodGet, "/sources", url.Values{"workspaceId": {ws}}, nil)
	if err != nil {
		return nil, err
	}
	var env listEnvelope[Source]
	if err := decode("list sources", b, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) CreateSource(ctx context.Context, req CreateSourceRequest) (*Source, error) {
	if req.WorkspaceID == "" {
		ws, err := c.ResolveWorkspace(ctx)
		if err != nil {
			return nil, err
		}
		req.WorkspaceID = ws
	}
	b, err := c.do(ctx, "create source", http.MethodPost, "/sources", nil, req)
	if err != nil {
		return nil, err
	}
	var out Source
	if err := decode("create source", b, &out); err != nil {
		return nil, err
	}
	if out.SourceID == "" {
		return nil, &UpstreamError{Op: "create source", StatusCode: http.StatusBadGateway, Body: "response has no sourceId"}
	}
	return &out, nil
}

func (c *Client) GetSource(ctx context.Context, sourceID string) (*Source, error) {
	op := "get source"
	b, err := c.do(ctx, op, http.MethodGet, "/sources/"+url.PathEscape(sourceID), nil, nil)
	if err != nil {
		return nil, err
	}
	var out Source
	if err := decode(op, b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSource removes a source. A source that is already gone counts as
// deleted.
func (c *Client) DeleteSource(ctx context.Context, sourceID string) error {
	_, err := c.do(ctx, "delete source", http.MethodDelete, "/sources/"+url.PathEscape(sourceID), nil, nil)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// DiscoverSchema fetches the stream catalog of a source. The catalog may be
// returned either under "catalog" or at the top level.
func (c *Client) DiscoverSchema(ctx context.Context, sourceID string) (SyncCatalog, error) {
	b, err := c.do(ctx, "discover schema", http.MethodGet, "/sources/"+url.PathEscape(sourceID)+"/schema", nil, nil)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(b) {
		return nil, &SchemaDiscoveryError{SourceID: sourceID, Reason: "malformed catalog"}
	}
	catalog := gjson.GetBytes(b, "catalog")
	if !catalog.Exists() {
		catalog = gjson.ParseBytes(b)
	}
	if !catalog.IsObject() {
		return nil, &SchemaDiscoveryError{SourceID: sourceID, Reason: "catalog missing"}
	}
	streams := catalog.Get("streams")
	if !streams.IsArray() || len(streams.Array()) == 0 {
		return nil, &SchemaDiscoveryError{SourceID: sourceID, Reason: "catalog has no streams"}
	}
	return SyncCatalog(strings.TrimSpace(catalog.Raw)), nil
}

// InitiateOAuth starts the consent flow for an OAuth-backed source type and
// returns the platform's answer, which carries the consent URL.
func (c *Client) InitiateOAuth(ctx context.Context, req OAuthRequest) (map[string]any, error) {
	if req.WorkspaceID == "" {
		ws, err := c.ResolveWorkspace(ctx)
		if err != nil {
			return nil, err
		}
		req.WorkspaceID = ws
	}
	b, err := c.do(ctx, "initiate oauth", http.MethodPost, "/sources/initiateOAuth", nil, req)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(b) == 0 {
		return out, nil
	}
	if err := decode("initiate oauth", b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDestinations(ctx context.Context) ([]Destination, error) {
	ws, err := c.ResolveWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	b, err := c.do(ctx, "list destinations", http.MethodGet, "/destinations", url.Values{"workspaceId": {ws}}, nil)
	if err != nil {
		return nil, err
	}
	var env listEnvelope[Destination]
	if err := decode("list destinations", b, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetDestination(ctx context.Context, destinationID string) (*Destination, error) {
	b, err := c.do(ctx, "get destination", http.MethodGet, "/destinations/"+url.PathEscape(destinationID), nil, nil)
	if err != nil {
		return nil, err
	}
	var out Destination
	if err := decode("get destination", b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
