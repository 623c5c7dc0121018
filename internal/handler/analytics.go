package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"datagage/internal/logger"
	"datagage/internal/service"
)

const (
	sseDone           = "data: [DONE]\n\n"
	wsReadLimit       = 4 << 20
	wsRequestDeadline = 10 * time.Second
)

type AnalyticsHandler struct {
	Analytics *service.AnalyticsService
	Narrator  *service.Narrator
	Logger    *zap.Logger
	// OriginPatterns are the hosts allowed to open the insights WebSocket.
	OriginPatterns []string
}

func (h *AnalyticsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/analytics")
	group.GET("/diagnostic", h.diagnostic)
	group.GET("/sales", h.sales)
	group.GET("/sales-detail", h.salesDetail)
	group.GET("/time-series", h.timeSeries)
	group.GET("/event-counts", h.eventCounts)
	group.GET("/top-sources", h.topSources)
	group.GET("/recent-activity", h.recentActivity)
	group.POST("/insights", h.insights)
	group.POST("/insights-stream", h.insightsStream)
	group.GET("/insights-ws", h.insightsWS)
}

func (h *AnalyticsHandler) log() *zap.Logger { return logger.OrNop(h.Logger) }

func (h *AnalyticsHandler) ready(c *gin.Context) bool {
	if h.Analytics == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return false
	}
	return true
}

func filterQuery(c *gin.Context) (service.Period, string, string, error) {
	p, err := service.ParsePeriod(c.Query("months"))
	return p, c.Query("product"), c.Query("customer"), err
}

// @Summary Database connectivity and sales schema
// @Tags analytics
// @Success 200 {object} apiResponse
// @Router /api/analytics/diagnostic [get]
func (h *AnalyticsHandler) diagnostic(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	d, err := h.Analytics.Diagnostic(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, d, nil)
}

// @Summary Sales overview with period-over-period trends
// @Tags analytics
// @Param months query string false "1-60 or all"
// @Param product query string false "product filter"
// @Param customer query string false "customer filter"
// @Success 200 {object} apiResponse
// @Failure 400 {object} apiResponse
// @Router /api/analytics/sales [get]
func (h *AnalyticsHandler) sales(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	p, product, customer, err := filterQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	raw, err := h.Analytics.GetOverview(c.Request.Context(), p, product, customer)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, raw, nil)
}

// @Summary Monthly sales by product
// @Tags analytics
// @Param months query string false "1-60 or all"
// @Param product query string false "product filter"
// @Param customer query string false "customer filter"
// @Success 200 {object} apiResponse
// @Router /api/analytics/sales-detail [get]
func (h *AnalyticsHandler) salesDetail(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	p, product, customer, err := filterQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}
	raw, err := h.Analytics.GetDetail(c.Request.Context(), p, product, customer)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, raw, nil)
}

// @Summary Bucketed sales metric
// @Tags analytics
// @Param granularity query string false "day|week|month"
// @Param metric query string false "revenue|orders|items"
// @Param months query int false "lookback, default 6"
// @Success 200 {object} apiResponse
// @Router /api/analytics/time-series [get]
func (h *AnalyticsHandler) timeSeries(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	pts, err := h.Analytics.TimeSeries(c.Request.Context(), c.Query("granularity"), c.Query("metric"), intQuery(c, "months", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, pts, nil)
}

// @Summary Thirty day event counts
// @Tags analytics
// @Success 200 {object} apiResponse
// @Router /api/analytics/event-counts [get]
func (h *AnalyticsHandler) eventCounts(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	ec, err := h.Analytics.EventCounts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, ec, nil)
}

// @Summary Most recently synced sources
// @Tags analytics
// @Param limit query int false "default 5"
// @Success 200 {object} apiResponse
// @Router /api/analytics/top-sources [get]
func (h *AnalyticsHandler) topSources(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	items, err := h.Analytics.TopSources(c.Request.Context(), intQuery(c, "limit", 5))
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Recent source activity
// @Tags analytics
// @Param limit query int false "default 10"
// @Success 200 {object} apiResponse
// @Router /api/analytics/recent-activity [get]
func (h *AnalyticsHandler) recentActivity(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	items, err := h.Analytics.RecentActivity(c.Request.Context(), intQuery(c, "limit", 10))
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, items, nil)
}

// @Summary Narrative insights for the posted rows
// @Tags analytics
// @Param body body service.InsightRequest true "rows and filter"
// @Success 200 {object} apiResponse
// @Router /api/analytics/insights [post]
func (h *AnalyticsHandler) insights(c *gin.Context) {
	if h.Narrator == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req service.InsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	in, err := h.Narrator.Generate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	Ok(c, in, nil)
}

// @Summary Stream narrative insights as server-sent events
// @Tags analytics
// @Accept json
// @Produce text/event-stream
// @Param body body service.InsightRequest true "rows and filter"
// @Success 200 {string} string "data: {\"content\":\"...\"}"
// @Failure 400 {object} apiResponse
// @Router /api/analytics/insights-stream [post]
func (h *AnalyticsHandler) insightsStream(c *gin.Context) {
	if h.Narrator == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req service.InsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", map[string]any{"error": err.Error()})
		return
	}
	if req.Filter == nil {
		Error(c, http.StatusBadRequest, "Filter context is required for streaming insights.", nil)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request.Context()
	err := h.Narrator.Stream(ctx, req, func(ch service.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ch.Done {
			_, err := w.WriteString(sseDone)
			w.Flush()
			return err
		}
		payload, err := json.Marshal(ch)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil && ctx.Err() == nil {
		h.log().Warn("insights stream", zap.Error(err))
	}
}

// wsMessage is the frame written on the insights WebSocket.
type wsMessage struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

// @Summary Stream narrative insights over a WebSocket
// @Description The client sends one InsightRequest as a text frame and receives
// @Description {content} frames followed by {done:true}.
// @Tags analytics
// @Router /api/analytics/insights-ws [get]
func (h *AnalyticsHandler) insightsWS(c *gin.Context) {
	if h.Narrator == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		h.log().Warn("insights ws accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsReadLimit)

	ctx := c.Request.Context()
	readCtx, cancel := context.WithTimeout(ctx, wsRequestDeadline)
	_, data, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		h.log().Debug("insights ws read", zap.Error(err))
		return
	}

	send := func(m wsMessage) error {
		payload, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, payload)
	}

	var req service.InsightRequest
	if err := json.Unmarshal(data, &req); err != nil {
		_ = send(wsMessage{Error: "invalid request body"})
		_ = conn.Close(websocket.StatusUnsupportedData, "invalid request")
		return
	}
	if req.Filter == nil {
		_ = send(wsMessage{Error: "Filter context is required for streaming insights."})
		_ = conn.Close(websocket.StatusPolicyViolation, "missing filter context")
		return
	}

	err = h.Narrator.Stream(ctx, req, func(ch service.Chunk) error {
		return send(wsMessage{Content: ch.Content, Error: ch.Error, Done: ch.Done})
	})
	if err != nil {
		if ctx.Err() == nil {
			h.log().Warn("insights ws stream", zap.Error(err))
		}
		_ = conn.Close(websocket.StatusInternalError, "stream failed")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}
