package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler/prometheus"
	"github.com/jwalitptl/hospital-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	health  Handler
	metrics *prometheus.Handler
	api     []Handler
}

type RouterConfig struct {
	RequestTimeout time.Duration
	RateLimit      *middleware.RateLimiterConfig
	MaxBodySize    int64
}

// NewRouter builds the engine with the shared middleware chain. Handlers in
// api are mounted under /api/v1 behind authentication; health is public.
func NewRouter(
	auth *middleware.AuthMiddleware,
	health Handler,
	metrics *prometheus.Handler,
	config RouterConfig,
	api ...Handler,
) *Router {
	middleware.RegisterValidation()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		metrics.Middleware(),
		middleware.ErrorHandler(),
		middleware.SecureHeaders(),
		middleware.Timeout(config.RequestTimeout),
		middleware.BodyLimit(config.MaxBodySize),
	)
	if config.RateLimit != nil {
		engine.Use(middleware.NewRateLimiter(*config.RateLimit).RateLimit())
	}

	return &Router{
		engine:  engine,
		auth:    auth,
		health:  health,
		metrics: metrics,
		api:     api,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api/v1")
	r.health.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.api {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
