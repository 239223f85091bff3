package httpapi

import (
	"campaignhub-botgateway/pkg/errutil"
	"campaignhub-botgateway/pkg/health"
	"campaignhub-botgateway/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Module installs the shared middleware and the operational endpoints. Domain
// modules add their own routes to the same engine.
var Module = fx.Module("httpapi",
	fx.Invoke(registerMiddleware, registerOperationalEndpoints),
)

func registerMiddleware(r *gin.Engine) {
	r.Use(gin.Recovery(), middleware.Error())
	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(errutil.NotFound("route not found", nil))
	})
}

func registerOperationalEndpoints(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
