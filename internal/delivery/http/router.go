package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vikashkrdeveloper/SafeExec/internal/delivery/http/middleware"
	"github.com/vikashkrdeveloper/SafeExec/internal/usecase"
)

// RouterDeps holds everything the router wires.
type RouterDeps struct {
	SubmitUC        *usecase.SubmitJobUsecase
	GetJobUC        *usecase.GetJobUsecase
	HealthChecks    map[string]HealthCheck
	Logger          *zap.Logger
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// NewRouter creates and configures the Gin router with all routes and
// middleware. ctx bounds background work of the middleware.
func NewRouter(ctx context.Context, deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(deps.Logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		healthHandler := NewHealthHandler(deps.HealthChecks, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		execHandler := NewExecutionHandler(deps.SubmitUC, deps.GetJobUC, deps.Logger)
		wsHandler := NewWebSocketHandler(deps.GetJobUC, deps.Logger)

		limited := v1.Group("/executions")
		limited.Use(middleware.RateLimiter(ctx, deps.RateLimitPerMin))
		limited.POST("", middleware.BodySizeLimit(deps.MaxBodyBytes), execHandler.Submit)
		limited.GET("/:id", execHandler.GetByID)
		limited.GET("/:id/stream", wsHandler.Stream)
	}

	return router
}
