package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/listing-check/internal/storage"
)

// EmbeddingCache is the active vector cache, SQLite or Redis.
type EmbeddingCache interface {
	Count(ctx context.Context) (int64, error)
	DeleteModel(ctx context.Context, modelName string) (int64, error)
}

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	embeddings EmbeddingCache // nil when caching is disabled
	calls      storage.ModelCallRepository
	logger     *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(embeddings EmbeddingCache, calls storage.ModelCallRepository, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		embeddings: embeddings,
		calls:      calls,
		logger:     logger,
	}
}

// Stats returns embedding cache size and backend call counts.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	var cached int64
	if h.embeddings != nil {
		var err error
		cached, err = h.embeddings.Count(ctx)
		if err != nil {
			h.logger.Error("counting embeddings", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
	}

	total, err := h.calls.Count(ctx)
	if err != nil {
		h.logger.Error("counting model calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	failed, err := h.calls.CountFailed(ctx)
	if err != nil {
		h.logger.Error("counting failed model calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	byProvider, err := h.calls.CountByProvider(ctx)
	if err != nil {
		h.logger.Error("counting model calls by provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cached_embeddings": cached,
		"model_calls": gin.H{
			"total":       total,
			"failed":      failed,
			"by_provider": byProvider,
		},
	})
}

// PurgeEmbeddings drops the cached vectors of one model, e.g. after new
// weights were deployed under the same model name.
// Route: DELETE /api/v1/admin/embeddings?model=NAME
func (h *AdminHandler) PurgeEmbeddings(c *gin.Context) {
	modelName := c.Query("model")
	if modelName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model query parameter is required"})
		return
	}
	if h.embeddings == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "embedding cache is disabled"})
		return
	}

	deleted, err := h.embeddings.DeleteModel(c.Request.Context(), modelName)
	if err != nil {
		h.logger.Error("purging embeddings", zap.String("model", modelName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.logger.Info("purged embeddings", zap.String("model", modelName), zap.Int64("deleted", deleted))
	c.JSON(http.StatusOK, gin.H{"model": modelName, "deleted": deleted})
}
