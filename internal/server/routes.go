package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fleveque/listing-check/internal/config"
	"github.com/fleveque/listing-check/internal/handler"
	"github.com/fleveque/listing-check/internal/middleware"
	"github.com/fleveque/listing-check/internal/storage"
)

// UploadsPath is where saved uploads are served.
const UploadsPath = "/static/uploads"

// Deps holds everything the handlers need. Built by app.New.
type Deps struct {
	Verifier   handler.Verifier
	Embeddings handler.EmbeddingCache // active cache backend; nil when disabled
	ModelCalls storage.ModelCallRepository
	DB         handler.Pinger
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// Dependencies are passed explicitly; each handler gets exactly what it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	maxBytes := cfg.Storage.MaxUploadBytes

	healthHandler := handler.NewHealthHandler(deps.DB)
	pageHandler := handler.NewPageHandler(deps.Verifier, maxBytes, logger)
	verifyHandler := handler.NewVerifyHandler(deps.Verifier, maxBytes, logger)
	adminHandler := handler.NewAdminHandler(deps.Embeddings, deps.ModelCalls, logger)

	// One bucket per client across both upload routes.
	limit := middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, middleware.ClientIP)

	// Public endpoints
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static(UploadsPath, cfg.Storage.UploadDir)

	// Browser flow
	r.GET("/", pageHandler.Index)
	r.POST("/upload", limit, pageHandler.Upload)

	// CORS middleware applies to the entire API group.
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	// Group middleware only runs on matched routes, so preflights need one.
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.POST("/verify", limit, verifyHandler.Verify)

	// Admin endpoints (separate auth with admin keys)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
		admin.DELETE("/embeddings", adminHandler.PurgeEmbeddings)
	}
}
