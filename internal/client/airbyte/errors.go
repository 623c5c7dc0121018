package airbyte

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingCredentials is returned before any request is sent when the
// client id or secret is not configured.
var ErrMissingCredentials = errors.New("airbyte client credentials are not configured")

// UpstreamError is a non-2xx answer from the platform.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("airbyte %s http %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *UpstreamError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// SchemaDiscoveryError means the platform returned no usable catalog for a
// source. Retrying the same source does not help.
type SchemaDiscoveryError struct {
	SourceID string
	Reason   string
}

func (e *SchemaDiscoveryError) Error() string {
	return fmt.Sprintf("schema discovery failed for source %s: %s", e.SourceID, e.Reason)
}

// IsNotFound reports whether err carries a platform 404.
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.NotFound()
}
