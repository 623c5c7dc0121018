package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"datagage/internal/client/airbyte"
	"datagage/internal/client/metabase"
	"datagage/internal/repository"
	"datagage/internal/service"
	"datagage/internal/sourcetype"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// hideInternal replaces 500 messages with a generic one and keeps upstream
// response bodies out of error messages and meta.
var hideInternal bool

// HideInternalErrors is set in production so unexpected error text never
// reaches clients.
func HideInternalErrors(v bool) { hideInternal = v }

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Created(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusCreated, apiResponse{
		Code:    0,
		Message: "created",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// writeError maps err onto a status code and writes the error envelope.
func writeError(c *gin.Context, err error) {
	status, msg, meta := classify(err)
	if status == http.StatusInternalServerError && hideInternal {
		msg = "Internal server error"
	}
	_ = c.Error(err)
	Error(c, status, msg, meta)
}

func classify(err error) (int, string, map[string]any) {
	meta := map[string]any{}
	var we *service.WorkflowError
	if errors.As(err, &we) {
		meta["stage"] = we.Stage
	}

	var (
		ve  *service.ValidationError
		nf  *service.NotFoundError
		sde *airbyte.SchemaDiscoveryError
		ue  *airbyte.UpstreamError
		me  *metabase.APIError
		ut  *sourcetype.UnsupportedTypeError
	)
	switch {
	case errors.As(err, &ve):
		if ve.Field != "" {
			meta["field"] = ve.Field
		}
		return http.StatusBadRequest, ve.Message, meta
	case errors.As(err, &ut):
		return http.StatusBadRequest, ut.Error(), meta
	case errors.Is(err, repository.ErrNoFieldsProvided):
		return http.StatusBadRequest, err.Error(), meta
	case errors.As(err, &nf):
		return http.StatusNotFound, nf.Error(), meta
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, err.Error(), meta
	case errors.As(err, &sde):
		meta["retryable"] = false
		return http.StatusBadGateway, err.Error(), meta
	case errors.As(err, &ue):
		meta["upstream"] = "airbyte"
		meta["upstreamStatus"] = ue.StatusCode
		if hideInternal {
			return upstreamStatus(ue.StatusCode), fmt.Sprintf("airbyte %s failed with status %d", ue.Op, ue.StatusCode), meta
		}
		meta["upstreamBody"] = ue.Body
		return upstreamStatus(ue.StatusCode), err.Error(), meta
	case errors.As(err, &me):
		meta["upstream"] = "metabase"
		meta["upstreamStatus"] = me.StatusCode
		if hideInternal {
			return upstreamStatus(me.StatusCode), fmt.Sprintf("metabase %s failed with status %d", me.Op, me.StatusCode), meta
		}
		return upstreamStatus(me.StatusCode), err.Error(), meta
	case errors.Is(err, airbyte.ErrMissingCredentials), errors.Is(err, metabase.ErrMissingSecret):
		return http.StatusServiceUnavailable, err.Error(), meta
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, err.Error(), meta
	}
	if len(meta) == 0 {
		meta = nil
	}
	return http.StatusInternalServerError, err.Error(), meta
}

// upstreamStatus passes client and server errors through; anything else,
// including an upstream 401 on our own credentials, is a bad gateway.
func upstreamStatus(code int) int {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return http.StatusBadGateway
	case code >= 400 && code < 600:
		return code
	}
	return http.StatusBadGateway
}
