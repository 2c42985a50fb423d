// Package httpapi exposes the dashboard and the data-access layer over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ruraldash/internal/auth"
	"ruraldash/internal/dashboard"
	"ruraldash/internal/httpmiddleware"
	"ruraldash/internal/metrics"
	"ruraldash/internal/queue"
)

// Config wires the router to the rest of the application.
type Config struct {
	Data      dashboard.DataAccess
	Dashboard *dashboard.Service
	Queue     queue.Queue
	Signer    *auth.Signer
	Metrics   *metrics.Metrics
	Log       *zap.Logger

	// Checks are reported by /healthz; any false turns it into a 503.
	Checks map[string]func(context.Context) bool

	RateLimitPerMin int
	CORSOrigins     []string
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(cfg Config) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{data: cfg.Data, dash: cfg.Dashboard, queue: cfg.Queue, checks: cfg.Checks, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(log, "/healthz", "/metrics"))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Gin())

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/status", h.Status)
		api.GET("/dashboard", h.Dashboard)
		api.POST("/refresh", h.Refresh)
		api.GET("/resources/*endpoint", h.ReadResource)
		api.GET("/students", h.ListStudents)
	}

	write := api.Group("", auth.RequireRole(cfg.Signer, auth.RoleOperator))
	{
		write.POST("/resources/*endpoint", h.WriteResource)
		write.POST("/students", h.AddStudent)
		write.POST("/attendance", h.MarkStudent)
		write.POST("/attendance/mark-all", h.MarkAll)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{httpmiddleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// NewServer wraps the router with the timeouts the API runs under.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
