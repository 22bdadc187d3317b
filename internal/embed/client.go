// Package embed talks to vision-language embedding backends (CLIP-family
// models served over HTTP) and turns images and texts into vectors in a
// shared space.
//
// An image vector and text vectors are only comparable when they come from
// the same model, so a Client always embeds a whole Request, and fallback
// between backends happens per request, never per input.
package embed

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoClients is returned by a Chain with no backends.
var ErrNoClients = errors.New("no embedding backends configured")

// Request is one unit of work for a backend. Image may be nil when only
// texts are needed, and Texts may be empty when only the image is.
type Request struct {
	Image []byte // encoded image (JPEG/PNG)
	Texts []string
}

// Inputs returns how many vectors the request asks for.
func (r Request) Inputs() int {
	n := len(r.Texts)
	if r.Image != nil {
		n++
	}
	return n
}

// Result holds the vectors for a Request, in request order.
type Result struct {
	Image    []float32
	Texts    [][]float32
	Provider string
	Model    string
	Cached   int // how many of the vectors were served from cache
}

// Client is the interface for embedding backends.
type Client interface {
	Embed(ctx context.Context, req Request) (*Result, error)
	ProviderName() string
	ModelName() string
}

// BackendError reports a failed backend call together with how many inputs
// were actually sent; the rest of the request was served from cache.
type BackendError struct {
	Inputs int
	Err    error
}

func (e *BackendError) Error() string { return e.Err.Error() }
func (e *BackendError) Unwrap() error { return e.Err }

// check verifies that a backend answered every input of req.
func (r *Result) check(req Request) error {
	if req.Image != nil && len(r.Image) == 0 {
		return errors.New("backend returned no image embedding")
	}
	if len(r.Texts) != len(req.Texts) {
		return fmt.Errorf("backend returned %d text embeddings for %d texts", len(r.Texts), len(req.Texts))
	}
	for i, v := range r.Texts {
		if len(v) == 0 {
			return fmt.Errorf("backend returned an empty embedding for text %d", i)
		}
	}
	return nil
}
