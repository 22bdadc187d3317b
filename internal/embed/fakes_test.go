package embed

import (
	"context"
	"errors"
	"sync"

	"github.com/fleveque/listing-check/internal/model"
)

// fakeClient returns deterministic vectors derived from input length.
type fakeClient struct {
	provider string
	model    string
	err      error

	mu    sync.Mutex
	calls []Request
}

func (f *fakeClient) ProviderName() string { return f.provider }
func (f *fakeClient) ModelName() string    { return f.model }

func (f *fakeClient) Embed(_ context.Context, req Request) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	res := &Result{Provider: f.provider, Model: f.model}
	if req.Image != nil {
		res.Image = []float32{float32(len(req.Image)), 1}
	}
	for _, t := range req.Texts {
		res.Texts = append(res.Texts, []float32{float32(len(t)), 2})
	}
	return res, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memStore struct {
	mu      sync.Mutex
	vectors map[model.EmbeddingKey][]float32
	failGet bool
}

func newMemStore() *memStore {
	return &memStore{vectors: make(map[model.EmbeddingKey][]float32)}
}

func (s *memStore) Lookup(_ context.Context, key model.EmbeddingKey) ([]float32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, false, errors.New("store down")
	}
	v, ok := s.vectors[key]
	return v, ok, nil
}

func (s *memStore) Save(_ context.Context, key model.EmbeddingKey, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[key] = vec
	return nil
}

type fakeCallRepo struct {
	mu    sync.Mutex
	calls []*model.ModelCall
}

func (r *fakeCallRepo) Create(_ context.Context, call *model.ModelCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	call.ID = int64(len(r.calls) + 1)
	r.calls = append(r.calls, call)
	return nil
}

func (r *fakeCallRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.calls)), nil
}

func (r *fakeCallRepo) CountFailed(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.calls {
		if !c.Success {
			n++
		}
	}
	return n, nil
}

func (r *fakeCallRepo) CountByProvider(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64)
	for _, c := range r.calls {
		out[c.Provider]++
	}
	return out, nil
}
