package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datagage/internal/client/metabase"
	"datagage/internal/logger"
	"datagage/internal/service"
)

// MetabaseHandler serves the embed routes. Their bodies are the plain
// {success, ...} objects the dashboard iframe code reads, not the envelope.
type MetabaseHandler struct {
	Dashboards *service.DashboardService
	Logger     *zap.Logger
}

func (h *MetabaseHandler) Register(r *gin.Engine) {
	group := r.Group("/api/metabase")
	group.POST("/dashboard/create", h.createDashboard)
	group.GET("/dashboard/:id", h.embedDashboard)
	group.GET("/question/:id", h.embedQuestion)
}

func (h *MetabaseHandler) fail(c *gin.Context, err error) {
	status, msg, _ := classify(err)
	if status == http.StatusInternalServerError && hideInternal {
		msg = "Internal server error"
	}
	_ = c.Error(err)
	logger.OrNop(h.Logger).Warn("metabase route", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func embedParams(c *gin.Context) metabase.EmbedParams {
	return metabase.EmbedParams{
		TimeRange: c.Query("timeRange"),
		Product:   c.Query("product"),
		Customer:  c.Query("customer"),
	}.WithDefaults()
}

// @Summary Create the sales analytics dashboard
// @Tags metabase
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/metabase/dashboard/create [post]
func (h *MetabaseHandler) createDashboard(c *gin.Context) {
	if h.Dashboards == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "metabase is not configured"})
		return
	}
	out, err := h.Dashboards.CreateSalesDashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dashboardId": out.DashboardID, "embedUrl": out.EmbedURL})
}

// @Summary Signed embed URL for a dashboard
// @Tags metabase
// @Param id path int true "dashboard id"
// @Param timeRange query string false "default 12"
// @Param product query string false "default all"
// @Param customer query string false "default all"
// @Success 200 {object} map[string]any
// @Router /api/metabase/dashboard/{id} [get]
func (h *MetabaseHandler) embedDashboard(c *gin.Context) {
	if h.Dashboards == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "metabase is not configured"})
		return
	}
	u, err := h.Dashboards.EmbedDashboard(c.Param("id"), embedParams(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "embedUrl": u})
}

// @Summary Signed embed URL for a saved question
// @Tags metabase
// @Param id path int true "question id"
// @Success 200 {object} map[string]any
// @Router /api/metabase/question/{id} [get]
func (h *MetabaseHandler) embedQuestion(c *gin.Context) {
	if h.Dashboards == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "metabase is not configured"})
		return
	}
	u, err := h.Dashboards.EmbedQuestion(c.Param("id"), embedParams(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "embedUrl": u})
}
