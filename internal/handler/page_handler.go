package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/listing-check/internal/storage"
)

// PageHandler serves the browser flow: the upload form and the result page.
type PageHandler struct {
	verifier Verifier
	maxBytes int64
	logger   *zap.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(verifier Verifier, maxBytes int64, logger *zap.Logger) *PageHandler {
	return &PageHandler{verifier: verifier, maxBytes: maxBytes, logger: logger}
}

// Index renders the upload form.
// Route: GET /
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"Keywords": h.verifier.Keywords(),
	})
}

// Upload saves the file, runs the pipeline and renders the verdict.
// Route: POST /upload (multipart: file, description)
func (h *PageHandler) Upload(c *gin.Context) {
	upload, err := readUpload(c, h.maxBytes)
	switch {
	case errors.Is(err, errNoFile):
		c.String(http.StatusBadRequest, "No file selected")
		return
	case errors.Is(err, errFileTooLarge):
		c.String(http.StatusRequestEntityTooLarge, "File too large")
		return
	case err != nil:
		h.internalError(c, err)
		return
	}

	verdict, err := h.verifier.Verify(c.Request.Context(), upload, c.PostForm("description"))
	if errors.Is(err, storage.ErrInvalidFilename) {
		c.String(http.StatusBadRequest, "Invalid file name")
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.HTML(http.StatusOK, "result.tmpl", gin.H{"Verdict": verdict})
}

func (h *PageHandler) internalError(c *gin.Context, err error) {
	h.logger.Error("upload failed",
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	)
	c.String(http.StatusInternalServerError, "Internal Server Error")
}
