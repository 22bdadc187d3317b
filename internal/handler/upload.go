package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/listing-check/internal/model"
)

// Verifier runs the verification pipeline. *service.Verifier implements it.
type Verifier interface {
	Verify(ctx context.Context, upload model.Upload, description string) (*model.Verdict, error)
	Keywords() []string
}

var (
	errNoFile       = errors.New("no file selected")
	errFileTooLarge = errors.New("file too large")
)

// multipartOverhead leaves room for form fields and part headers on top of
// the file itself when capping the request body.
const multipartOverhead = 1 << 20

// readUpload pulls the "file" part out of a multipart request. A missing
// part, an empty filename and a zero-byte file all count as no file.
func readUpload(c *gin.Context, maxBytes int64) (model.Upload, error) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.Upload{}, errFileTooLarge
		}
		return model.Upload{}, errNoFile
	}
	if fh.Filename == "" || fh.Size == 0 {
		return model.Upload{}, errNoFile
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return model.Upload{}, errFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return model.Upload{}, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.Upload{}, fmt.Errorf("reading upload: %w", err)
	}

	return model.Upload{Filename: fh.Filename, Data: data}, nil
}
