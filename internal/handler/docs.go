package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, routeIndex)
	})
}

const routeIndex = `# Datagage API

Backend for the data integration dashboard: connects sources through the ELT
platform, reports on the synced sales table, narrates it with an LLM and signs
BI embeds.

## Auth

When server auth is configured, /api/*, /docs and /swagger require
"Authorization: Bearer <token>". Health and metrics endpoints are public.
/api/* is rate limited per client IP.

## Sources (/api/airbyte)

- GET    /api/airbyte/sources
- GET    /api/airbyte/sources/:id
- POST   /api/airbyte/create/sources
- DELETE /api/airbyte/sources/:id
- GET    /api/airbyte/platform/sources
- GET    /api/airbyte/source-types
- GET    /api/airbyte/source-types/:type
- GET    /api/airbyte/source-definitions
- GET    /api/airbyte/source-definitions/:id
- GET    /api/airbyte/connections
- POST   /api/airbyte/create/connection
- GET    /api/airbyte/connections/:id/status
- POST   /api/airbyte/connections/:id/sync
- POST   /api/airbyte/sources/oauth/initiate

## Analytics (/api/analytics)

- GET  /api/analytics/diagnostic
- GET  /api/analytics/sales?months=&product=&customer=
- GET  /api/analytics/sales-detail?months=&product=&customer=
- GET  /api/analytics/time-series?granularity=&metric=&months=
- GET  /api/analytics/event-counts
- GET  /api/analytics/top-sources
- GET  /api/analytics/recent-activity
- POST /api/analytics/insights
- POST /api/analytics/insights-stream (text/event-stream)
- GET  /api/analytics/insights-ws (WebSocket)

## Embeds (/api/metabase)

- POST /api/metabase/dashboard/create
- GET  /api/metabase/dashboard/:id?timeRange=&product=&customer=
- GET  /api/metabase/question/:id

## Infra

- GET /healthz
- GET /healthz/upstream
- GET /readyz
- GET /metrics
- GET /swagger/index.html
`
