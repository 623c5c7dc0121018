package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type HealthHandler struct {
	DB *gorm.DB
	// Upstreams are optional readiness probes keyed by name. A failing probe
	// is reported but does not fail readiness.
	Upstreams map[string]func(ctx context.Context) error
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
	r.GET("/healthz/upstream", h.upstream)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// @Summary Health check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

// @Summary Readiness check
// @Tags health
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	sqlDB, err := h.DB.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_error"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	upstreams, _ := h.probe(ctx)
	c.JSON(http.StatusOK, gin.H{"status": "ready", "upstreams": upstreams})
}

// @Summary Upstream health
// @Description Probes the ELT platform token exchange and the configured destination.
// @Tags health
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz/upstream [get]
func (h *HealthHandler) upstream(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	upstreams, healthy := h.probe(ctx)
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "upstreams": upstreams})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "upstreams": upstreams})
}

func (h *HealthHandler) probe(ctx context.Context) (map[string]string, bool) {
	upstreams := map[string]string{}
	healthy := true
	for name, probe := range h.Upstreams {
		if err := probe(ctx); err != nil {
			upstreams[name] = "unreachable"
			healthy = false
			continue
		}
		upstreams[name] = "ok"
	}
	return upstreams, healthy
}
