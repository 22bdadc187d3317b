package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/listing-check/internal/service"
	"github.com/fleveque/listing-check/internal/storage"
)

// VerifyHandler is the JSON form of the upload flow.
type VerifyHandler struct {
	verifier Verifier
	maxBytes int64
	logger   *zap.Logger
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(verifier Verifier, maxBytes int64, logger *zap.Logger) *VerifyHandler {
	return &VerifyHandler{verifier: verifier, maxBytes: maxBytes, logger: logger}
}

// Verify returns the verdict as JSON.
// Route: POST /api/v1/verify (multipart: file, description)
func (h *VerifyHandler) Verify(c *gin.Context) {
	upload, err := readUpload(c, h.maxBytes)
	if err != nil {
		h.fail(c, err)
		return
	}

	verdict, err := h.verifier.Verify(c.Request.Context(), upload, c.PostForm("description"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, verdict)
}

func (h *VerifyHandler) fail(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("verify failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": msg})
}

// classify maps pipeline errors onto HTTP statuses.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "no file selected"
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, storage.ErrInvalidFilename):
		return http.StatusBadRequest, "invalid file name"
	case errors.Is(err, service.ErrImageDecode):
		return http.StatusUnprocessableEntity, "cannot decode image"
	case errors.Is(err, service.ErrBackend), errors.Is(err, service.ErrDimensionMismatch):
		return http.StatusBadGateway, "embedding backend unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
