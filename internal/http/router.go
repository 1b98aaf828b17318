// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/vendobot/go-sales-backend/internal/agent"
	"github.com/vendobot/go-sales-backend/internal/config"
	"github.com/vendobot/go-sales-backend/internal/http/handlers"
	"github.com/vendobot/go-sales-backend/internal/http/middleware"
	"github.com/vendobot/go-sales-backend/internal/services"
	"github.com/vendobot/go-sales-backend/internal/tools"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the versioned public API under /api/v*.
//
// The model client is injected so tests can script replies without touching
// the network; everything else is built here from db and cfg.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. BotScope: resolve the bot tenant for the request
//  4. Logger: structured access logs (includes bot_id)
//  5. Recovery: capture panics after logger
//  6. Body size limiter + gzip
//  7. Metrics
//  8. Rate limiter (per bot, IP fallback)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, client agent.ChatClient, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Resolve the bot tenant before anything that logs or limits by it
	r.Use(middleware.BotScope(cfg.DefaultBotID))

	// 4) Structured access logging
	r.Use(middleware.Logger())

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per bot (IP fallback). Every inbound
	// message can fan out into model calls, so this is cost protection as
	// much as abuse control.
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByBotOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Bot-ID", "X-Admin-Token"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Bot-ID", "X-Admin-Token"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db, agent ← tools ← services
	catalogSvc := services.NewCatalogService(db)
	cartSvc := services.NewCartService(db)
	if cfg.CartMaxQtyPerItem > 0 {
		cartSvc.MaxQtyPerItem = cfg.CartMaxQtyPerItem
	}
	settingsSvc := services.NewSettingsService(db)
	chatSvc := services.NewChatService(db)
	expressSvc := services.NewExpressService(db, catalogSvc)

	registry := tools.NewRegistry()
	tools.RegisterCatalogTools(registry, catalogSvc, settingsSvc)
	tools.RegisterCartTools(registry, cartSvc)

	loop := &agent.Loop{
		Client:      client,
		Registry:    registry,
		MaxToolHops: cfg.Agent.MaxToolHops,
		Temperature: cfg.Agent.Temperature,
	}

	msgSvc := &services.MessageService{
		DB:             db,
		Express:        expressSvc,
		Agent:          loop,
		MaxPromptRunes: 2000,
	}

	h := handlers.New(chatSvc, msgSvc, catalogSvc, cartSvc, settingsSvc, cfg.AdminToken)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Conversations
		api.GET("/chats", h.ListChats)
		api.GET("/chats/:id", h.GetChat)
		api.DELETE("/chats/:id", h.DeleteChat)

		// Messages
		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats/:id/messages", h.PostMessage)

		// Catalog (read-only)
		api.GET("/products", h.ListProducts)

		// Admin surface (token-gated)
		admin := api.Group("/admin", h.RequireAdmin())
		{
			admin.POST("/products", h.CreateProduct)
			admin.GET("/products/:id/ledger", h.ProductLedger)
			admin.GET("/sales", h.ListSales)
			admin.POST("/sales/:id/cancel", h.CancelSale)
			admin.POST("/sales/:id/paid", h.MarkSalePaid)
			admin.GET("/stats", h.Stats)

			admin.GET("/settings/payment-methods", h.ListPaymentMethods)
			admin.PUT("/settings/payment-methods", h.UpsertPaymentMethod)
			admin.DELETE("/settings/payment-methods/:name", h.DeletePaymentMethod)
			admin.GET("/settings/shipping-methods", h.ListShippingMethods)
			admin.PUT("/settings/shipping-methods", h.UpsertShippingMethod)
			admin.DELETE("/settings/shipping-methods/:name", h.DeleteShippingMethod)
		}
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
