// Package httpapi wires the HTTP transport (Gin) to the gateway: the health
// probe, the Prometheus endpoint, and the webhook that feeds decoded
// platform updates into the bot dispatcher. Cross-cutting concerns (tracing,
// correlation IDs, logging, panic recovery, metrics, CORS) are middleware.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Nullprotocols/telegram/internal/bot"
	"github.com/Nullprotocols/telegram/internal/config"
	"github.com/Nullprotocols/telegram/internal/http/middleware"
)

// RegisterRoutes attaches middleware and endpoints to the Gin engine.
//
// Middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: panics become JSON 500s
//  5. Body size limiter
//  6. Metrics
//  7. CORS (allow-all; the surface is a webhook plus probes)
func RegisterRoutes(r *gin.Engine, b *bot.Bot, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"X-Request-ID", "Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": "method_not_allowed", "message": "method not allowed"})
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST(cfg.WebhookPath, WebhookHandler(b, NewDeduper(cfg.DedupTTL)))
}

// limitBody caps the request body size; webhook updates are small JSON.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
