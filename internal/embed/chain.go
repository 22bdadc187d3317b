package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/listing-check/internal/metrics"
	"github.com/fleveque/listing-check/internal/model"
	"github.com/fleveque/listing-check/internal/storage"
)

// Chain tries embedding backends in configured order; the first success wins.
// Each attempt waits on a shared token bucket so a burst of uploads cannot
// flood the model server, and every attempt that reaches a backend is
// recorded in the model_calls table.
type Chain struct {
	clients []Client
	limiter *rate.Limiter
	calls   storage.ModelCallRepository // nil disables call tracking
	logger  *zap.Logger
}

// NewChain creates a chain. The order is set by config: embedder.provider_order.
// A non-positive ratePerSecond disables limiting.
func NewChain(clients []Client, ratePerSecond float64, burst int, calls storage.ModelCallRepository, logger *zap.Logger) *Chain {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	if burst < 1 {
		burst = 1
	}

	return &Chain{
		clients: clients,
		limiter: rate.NewLimiter(limit, burst),
		calls:   calls,
		logger:  logger,
	}
}

func (c *Chain) ProviderName() string { return "chain" }

// ModelName returns the primary backend's model.
func (c *Chain) ModelName() string {
	if len(c.clients) == 0 {
		return ""
	}
	return c.clients[0].ModelName()
}

// Embed runs req against each backend in order until one succeeds.
func (c *Chain) Embed(ctx context.Context, req Request) (*Result, error) {
	if len(c.clients) == 0 {
		return nil, ErrNoClients
	}

	var lastErr error
	for i, client := range c.clients {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		result, err := c.try(ctx, client, req)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		lastErr = err
		if i < len(c.clients)-1 {
			c.logger.Warn("embedding backend failed, trying next",
				zap.String("provider", client.ProviderName()),
				zap.String("model", client.ModelName()),
				zap.Error(err),
			)
		}
	}

	return nil, fmt.Errorf("all embedding backends failed: %w", lastErr)
}

func (c *Chain) try(ctx context.Context, client Client, req Request) (*Result, error) {
	start := time.Now()
	result, err := client.Embed(ctx, req)
	duration := time.Since(start).Milliseconds()

	if err == nil && result.Cached > 0 {
		metrics.EmbeddingCacheHits.Add(float64(result.Cached))
	}

	// Fully cached answers never reached the backend.
	if err != nil || result.Cached < req.Inputs() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.EmbeddingCallsTotal.WithLabelValues(client.ProviderName(), status).Inc()
		c.recordCall(ctx, client, req, result, err, duration)
	}
	return result, err
}

func (c *Chain) recordCall(ctx context.Context, client Client, req Request, result *Result, callErr error, durationMs int64) {
	if c.calls == nil {
		return
	}

	inputs := req.Inputs()
	var backendErr *BackendError
	switch {
	case result != nil:
		inputs -= result.Cached
	case errors.As(callErr, &backendErr):
		inputs = backendErr.Inputs
	}

	call := &model.ModelCall{
		Provider:   client.ProviderName(),
		Model:      client.ModelName(),
		Kind:       requestKind(req),
		Inputs:     inputs,
		Success:    callErr == nil,
		DurationMs: &durationMs,
	}
	if callErr != nil {
		msg := callErr.Error()
		call.ErrorMessage = &msg
	}

	if err := c.calls.Create(ctx, call); err != nil {
		c.logger.Error("recording model call", zap.Error(err))
	}
}

func requestKind(req Request) model.EmbeddingKind {
	switch {
	case req.Image != nil && len(req.Texts) > 0:
		return model.KindImageText
	case req.Image != nil:
		return model.KindImage
	default:
		return model.KindText
	}
}
