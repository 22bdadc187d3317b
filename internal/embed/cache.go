package embed

import (
	"context"

	"go.uber.org/zap"

	"github.com/fleveque/listing-check/internal/model"
)

// Store is a vector cache. Lookup reports a miss with ok == false and a nil error.
// storage.EmbeddingRepository (SQLite) and cache.RedisEmbeddingStore implement it.
type Store interface {
	Lookup(ctx context.Context, key model.EmbeddingKey) ([]float32, bool, error)
	Save(ctx context.Context, key model.EmbeddingKey, vec []float32) error
}

// CachingClient decorates a single backend with a vector cache. The model is
// deterministic, so a cached vector is exactly what the backend would return.
// Only the inputs that miss are sent to the backend.
type CachingClient struct {
	inner  Client
	store  Store
	logger *zap.Logger
}

// NewCachingClient wraps inner. A nil store makes it a pass-through.
func NewCachingClient(inner Client, store Store, logger *zap.Logger) *CachingClient {
	return &CachingClient{inner: inner, store: store, logger: logger}
}

func (c *CachingClient) ProviderName() string { return c.inner.ProviderName() }
func (c *CachingClient) ModelName() string    { return c.inner.ModelName() }

func (c *CachingClient) Embed(ctx context.Context, req Request) (*Result, error) {
	if c.store == nil {
		return c.inner.Embed(ctx, req)
	}

	modelName := c.inner.ModelName()
	result := &Result{
		Provider: c.inner.ProviderName(),
		Model:    modelName,
	}
	if len(req.Texts) > 0 {
		result.Texts = make([][]float32, len(req.Texts))
	}

	var imageKey model.EmbeddingKey
	miss := Request{}
	var missIdx []int

	if req.Image != nil {
		imageKey = model.NewEmbeddingKey(modelName, model.KindImage, req.Image)
		if vec, ok := c.lookup(ctx, imageKey); ok {
			result.Image = vec
			result.Cached++
		} else {
			miss.Image = req.Image
		}
	}

	textKeys := make([]model.EmbeddingKey, len(req.Texts))
	for i, text := range req.Texts {
		textKeys[i] = model.NewEmbeddingKey(modelName, model.KindText, []byte(text))
		if vec, ok := c.lookup(ctx, textKeys[i]); ok {
			result.Texts[i] = vec
			result.Cached++
			continue
		}
		miss.Texts = append(miss.Texts, text)
		missIdx = append(missIdx, i)
	}

	if miss.Inputs() == 0 {
		return result, nil
	}

	fresh, err := c.inner.Embed(ctx, miss)
	if err != nil {
		return nil, &BackendError{Inputs: miss.Inputs(), Err: err}
	}

	if miss.Image != nil {
		result.Image = fresh.Image
		c.save(ctx, imageKey, fresh.Image)
	}
	for j, i := range missIdx {
		result.Texts[i] = fresh.Texts[j]
		c.save(ctx, textKeys[i], fresh.Texts[j])
	}

	if err := result.check(req); err != nil {
		return nil, &BackendError{Inputs: miss.Inputs(), Err: err}
	}
	return result, nil
}

// Cache failures are logged and treated as misses; the backend stays the source of truth.
func (c *CachingClient) lookup(ctx context.Context, key model.EmbeddingKey) ([]float32, bool) {
	vec, ok, err := c.store.Lookup(ctx, key)
	if err != nil {
		c.logger.Warn("embedding cache lookup failed", zap.String("key", key.String()), zap.Error(err))
		return nil, false
	}
	return vec, ok
}

func (c *CachingClient) save(ctx context.Context, key model.EmbeddingKey, vec []float32) {
	if err := c.store.Save(ctx, key, vec); err != nil {
		c.logger.Warn("embedding cache save failed", zap.String("key", key.String()), zap.Error(err))
	}
}
