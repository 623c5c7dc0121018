package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datagage/internal/repository"
	"datagage/internal/service"
	"datagage/internal/sourcetype"
)

type AirbyteHandler struct {
	Workflow *service.SourceWorkflow
	Logger   *zap.Logger
}

func (h *AirbyteHandler) Register(r *gin.Engine) {
	group := r.Group("/api/airbyte")
	group.GET("/sources", h.listSources)
	group.GET("/sources/:id", h.getSource)
	group.POST("/create/sources", h.createSource)
	group.DELETE("/sources/:id", h.deleteSource)
	group.GET("/platform/sources", h.listPlatformSources)
	group.GET("/source-types", h.listSourceTypes)
	group.GET("/source-types/:type", h.getSourceType)
	group.GET("/source-definitions", h.listDefinitions)
	group.GET("/source-definitions/:id", h.getDefinition)
	group.GET("/connections", h.listConnections)
	group.POST("/create/connection", h.createConnection)
	group.GET("/connections/:id/status", h.connectionStatus)
	group.POST("/connections/:id/sync", h.triggerSync)
	group.POST("/sources/oauth/initiate", h.initiateOAuth)
}

func (h *AirbyteHandler) ready(c *gin.Context) bool {
	if h.Workflow == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return false
	}
	return true
}

// @Summary List local sources
// @Tags airbyte
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Param status query string false "pending|active|inactive|failed"
// @Param type query string false "source type"
// @Success 200 {object} apiResponse
// @Router /api/airbyte/sources [get]
func (h *AirbyteHandler) listSources(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	items, err := h.Workflow.ListSources(c.Request.Context(), repository.ListSourcesParams{
		Limit:  limit,
		Offset: offset,
		Status: strQueryPtr(c, "status"),
		Type:   strQueryPtr(c, "type"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, len(items)))
}

// @Summary List sources as the ELT platform sees them
// @Tags airbyte
// @Success 200 {object} apiResponse
// @Router /api/airbyte/platform/sources [get]
func (h *AirbyteHandler) listPlatformSources(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	items, err := h.Workflow.PlatformSources(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Get a source with its platform details
// @Tags airbyte
// @Param id path string true "local or platform source id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/airbyte/sources/{id} [get]
func (h *AirbyteHandler) getSource(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	d, err := h.Workflow.SourceDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, d, nil)
}

type createSourceRequest struct {
	SourceName   string          `json:"sourceName"`
	SourceType   string          `json:"sourceType"`
	SourceConfig json.RawMessage `json:"sourceConfig" swaggertype:"object"`
}

// @Summary Create a source and connect it to the default destination
// @Tags airbyte
// @Param body body createSourceRequest true "source"
// @Success 201 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/airbyte/create/sources [post]
func (h *AirbyteHandler) createSource(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	var cfg any
	if len(req.SourceConfig) > 0 && string(req.SourceConfig) != "null" {
		cfg = req.SourceConfig
		// a JSON string carrying the object is accepted too
		var s string
		if json.Unmarshal(req.SourceConfig, &s) == nil {
			cfg = s
		}
	}
	res, err := h.Workflow.CreateSource(c.Request.Context(), service.CreateSourceInput{
		Name:   req.SourceName,
		Type:   req.SourceType,
		Config: cfg,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("create source failed", zap.String("type", req.SourceType), zap.Error(err))
		}
		writeError(c, err)
		return
	}
	var meta map[string]any
	if len(res.Warnings) > 0 {
		meta = map[string]any{"warnings": res.Warnings}
	}
	Created(c, res, meta)
}

// @Summary Delete a source, its connections and its platform record
// @Tags airbyte
// @Param id path string true "local or platform source id"
// @Success 204
// @Success 200 {object} apiResponse "deleted with platform cleanup errors"
// @Failure 404 {object} apiResponse
// @Router /api/airbyte/sources/{id} [delete]
func (h *AirbyteHandler) deleteSource(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	res, err := h.Workflow.DeleteSource(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Partial() {
		Ok(c, res, map[string]any{"partial": true})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List supported source types
// @Tags airbyte
// @Success 200 {object} apiResponse
// @Router /api/airbyte/source-types [get]
func (h *AirbyteHandler) listSourceTypes(c *gin.Context) {
	all := sourcetype.List()
	out := make([]sourcetype.Summary, 0, len(all))
	for _, d := range all {
		out = append(out, d.Summary())
	}
	Ok(c, out, nil)
}

// @Summary Get the form schema of a source type
// @Tags airbyte
// @Param type path string true "source type id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/airbyte/source-types/{type} [get]
func (h *AirbyteHandler) getSourceType(c *gin.Context) {
	d, err := sourcetype.Get(c.Param("type"))
	if err != nil {
		Error(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	Ok(c, d, nil)
}

// @Summary List platform source definitions
// @Tags airbyte
// @Success 200 {object} apiResponse
// @Router /api/airbyte/source-definitions [get]
func (h *AirbyteHandler) listDefinitions(c *gin.Context) {
	Ok(c, sourcetype.Definitions(), nil)
}

// @Summary Get a platform source definition
// @Tags airbyte
// @Param id path string true "definition id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/airbyte/source-definitions/{id} [get]
func (h *AirbyteHandler) getDefinition(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	d, ok := sourcetype.LookupDefinition(id)
	if !ok {
		Error(c, http.StatusNotFound, "Source definition not found: "+id, nil)
		return
	}
	Ok(c, d, nil)
}

// @Summary List platform connections
// @Tags airbyte
// @Success 200 {object} apiResponse
// @Router /api/airbyte/connections [get]
func (h *AirbyteHandler) listConnections(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	items, err := h.Workflow.Connections(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, items, nil)
}

type createConnectionRequest struct {
	SourceID string `json:"sourceId"`
}

// @Summary Connect an existing source to the default destination
// @Tags airbyte
// @Param body body createConnectionRequest true "source id"
// @Success 201 {object} apiResponse
// @Router /api/airbyte/create/connection [post]
func (h *AirbyteHandler) createConnection(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req createConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	res, err := h.Workflow.CreateConnection(c.Request.Context(), req.SourceID)
	if err != nil {
		writeError(c, err)
		return
	}
	Created(c, gin.H{"connectionId": res.ConnectionID, "source": res.Source}, nil)
}

// @Summary Get connection sync status
// @Tags airbyte
// @Param id path string true "connection id"
// @Success 200 {object} apiResponse
// @Router /api/airbyte/connections/{id}/status [get]
func (h *AirbyteHandler) connectionStatus(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	st, err := h.Workflow.ConnectionStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, st, nil)
}

// @Summary Trigger a manual sync
// @Tags airbyte
// @Param id path string true "connection id"
// @Success 202 {object} apiResponse
// @Router /api/airbyte/connections/{id}/sync [post]
func (h *AirbyteHandler) triggerSync(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	job, err := h.Workflow.TriggerSync(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, apiResponse{Code: 0, Message: "Sync job started", Data: gin.H{"jobInfo": job}})
}

type oauthRequest struct {
	SourceType  string `json:"sourceType"`
	RedirectURL string `json:"redirectUrl"`
}

// @Summary Start the OAuth consent flow for a source type
// @Tags airbyte
// @Param body body oauthRequest true "source type and redirect"
// @Success 200 {object} apiResponse
// @Router /api/airbyte/sources/oauth/initiate [post]
func (h *AirbyteHandler) initiateOAuth(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req oauthRequest
	_ = c.ShouldBindJSON(&req)
	out, err := h.Workflow.InitiateOAuth(c.Request.Context(), req.SourceType, req.RedirectURL)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, out, nil)
}
