// Package api exposes keyword runs and single link checks over HTTP.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/maillage/api/handler"
	"github.com/use-agent/maillage/api/middleware"
	"github.com/use-agent/maillage/cache"
	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/linkcheck"
	"github.com/use-agent/maillage/metrics"
)

// Deps are the services the routes are built on.
type Deps struct {
	Classifier *linkcheck.Classifier
	Pages      *cache.Pages
	Runs       *handler.RunStore
	NewRunner  handler.RunnerFactory
	Version    string
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so probes and scrapers always work.
func NewRouter(ctx context.Context, deps Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Pages, deps.Runs, deps.Version, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		if len(cfg.Auth.APIKeys) == 0 {
			slog.Warn("auth enabled but no API keys configured: API is open")
		}
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/runs", handler.PostRun(deps.Runs, deps.NewRunner, cfg))
	protected.GET("/runs/:id", handler.GetRun(deps.Runs))
	protected.GET("/runs/:id/export", handler.ExportRun(deps.Runs, cfg))

	protected.POST("/check", handler.Check(deps.Classifier))

	return r
}
