package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/linker/internal/app"
	"github.com/charlesng35/linker/internal/handlers"
	"github.com/charlesng35/linker/internal/middleware"
	"github.com/charlesng35/linker/internal/resolver"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
// The resolve route sits at the root so short links stay short; management
// endpoints live under /api.
func NewRouter(db *gorm.DB, engine *resolver.Engine, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if engine == nil {
		return nil, fmt.Errorf("resolution engine must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 300 requests/minute per IP+path
	r.Use(middleware.RateLimit(300, time.Minute))

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(db))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	linkHandler, err := handlers.NewLinkHandler(engine, cfg.Server.BaseURL)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	{
		api.POST("/links", linkHandler.Create)
		api.GET("/links", linkHandler.List)
		api.GET("/links/reverse", linkHandler.Reverse)
		api.DELETE("/links/:code", linkHandler.Delete)
	}

	// Root-level resolution. Registered last so fixed routes take precedence.
	r.GET("/:code", linkHandler.Resolve)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
