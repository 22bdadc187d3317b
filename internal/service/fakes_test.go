package service

import (
	"context"
	"errors"
	"image/color"
	"sync"

	"github.com/fleveque/listing-check/internal/embed"
)

// fakeEmbedder returns a fixed image vector and per-prompt text vectors.
// Prompts without an entry get defaultText.
type fakeEmbedder struct {
	image       []float32
	texts       map[string][]float32
	defaultText []float32
	err         error

	mu    sync.Mutex
	calls int
	last  embed.Request
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		image:       []float32{1, 0},
		texts:       map[string][]float32{},
		defaultText: []float32{0, 1},
	}
}

func (f *fakeEmbedder) ProviderName() string { return "fake" }
func (f *fakeEmbedder) ModelName() string    { return "fake-clip" }

func (f *fakeEmbedder) Embed(_ context.Context, req embed.Request) (*embed.Result, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	res := &embed.Result{Image: f.image, Provider: "fake", Model: "fake-clip"}
	for _, t := range req.Texts {
		if v, ok := f.texts[t]; ok {
			res.Texts = append(res.Texts, v)
		} else {
			res.Texts = append(res.Texts, f.defaultText)
		}
	}
	return res, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLogos struct {
	names []string
	err   error
	calls int
}

func (f *fakeLogos) DetectLogos(context.Context, []byte) ([]string, error) {
	f.calls++
	return f.names, f.err
}

var errBackendDown = errors.New("backend down")

func testImage() []byte {
	return createTestPNG(32, 32, color.RGBA{R: 200, G: 30, B: 30, A: 255})
}
