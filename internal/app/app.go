// Package app builds the object graph shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fleveque/listing-check/internal/brand"
	"github.com/fleveque/listing-check/internal/cache"
	"github.com/fleveque/listing-check/internal/config"
	"github.com/fleveque/listing-check/internal/embed"
	"github.com/fleveque/listing-check/internal/handler"
	"github.com/fleveque/listing-check/internal/server"
	"github.com/fleveque/listing-check/internal/service"
	"github.com/fleveque/listing-check/internal/storage"
	"github.com/fleveque/listing-check/internal/vision"
)

// App owns every long-lived dependency. Close releases them.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *sqlx.DB
	Files      *storage.FileSystem
	Detector   *brand.Detector
	Embedder   embed.Client
	Verifier   *service.Verifier
	Embeddings storage.EmbeddingRepository
	ModelCalls storage.ModelCallRepository
	// Cache is the store selected by cache.backend, nil for "none".
	Cache cacheStore

	closers []func() error
}

// cacheStore is a vector cache the admin endpoints can count and purge.
type cacheStore interface {
	embed.Store
	handler.EmbeddingCache
}

// NewLogger returns a development logger for level "debug", else a production one.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// New wires storage, the embedding backends, the scorer and the verifier.
// On failure everything acquired so far is released.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("application ready",
		zap.Strings("providers", cfg.Embedder.ProviderOrder),
		zap.String("model", a.Embedder.ModelName()),
		zap.String("cache", cfg.Cache.Backend),
		zap.Float64("threshold", cfg.Matcher.Threshold),
		zap.Bool("logo_detection", cfg.Vision.Enabled),
	)
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	var err error
	a.Detector, err = brand.NewDetector(cfg.Brands.Keywords)
	if err != nil {
		return fmt.Errorf("building brand detector: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	a.DB, err = storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)

	a.Files, err = storage.NewFileSystem(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("creating upload store: %w", err)
	}

	a.Embeddings = storage.NewEmbeddingRepository(a.DB)
	a.ModelCalls = storage.NewModelCallRepository(a.DB)

	a.Cache, err = a.embeddingStore(ctx)
	if err != nil {
		return err
	}
	var store embed.Store
	if a.Cache != nil {
		store = a.Cache
	}

	clients, err := newClients(cfg.Embedder)
	if err != nil {
		return err
	}
	for i, c := range clients {
		clients[i] = embed.NewCachingClient(c, store, logger)
	}
	a.Embedder = embed.NewChain(clients, cfg.Embedder.RatePerSecond, cfg.Embedder.Burst, a.ModelCalls, logger)

	processor := service.NewImageProcessor(cfg.Matcher.MaxImageSide)
	scorer := service.NewScorer(a.Embedder, processor, cfg.Matcher.PromptTemplates, cfg.Matcher.Threshold)
	a.Verifier = service.NewVerifier(a.Files, a.Detector, scorer, server.UploadsPath, logger)

	if cfg.Vision.Enabled {
		logos, err := vision.NewLogoDetector(ctx, cfg.Vision.MinScore)
		if err != nil {
			return fmt.Errorf("enabling logo detection: %w", err)
		}
		a.closers = append(a.closers, logos.Close)
		a.Verifier.WithLogoDetector(logos)
	}
	return nil
}

// Deps returns the handler dependencies for server.New.
func (a *App) Deps() server.Deps {
	deps := server.Deps{
		Verifier:   a.Verifier,
		ModelCalls: a.ModelCalls,
		DB:         a.DB,
	}
	if a.Cache != nil {
		deps.Embeddings = a.Cache
	}
	return deps
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// embeddingStore returns nil for backend "none"; CachingClient treats a nil
// Store as pass-through.
func (a *App) embeddingStore(ctx context.Context) (cacheStore, error) {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case "sqlite":
		return a.Embeddings, nil
	case "redis":
		rdb, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return cache.NewRedisEmbeddingStore(rdb, cfg.Redis.TTL, cfg.Redis.Namespace), nil
	default:
		return nil, nil
	}
}

func newClients(cfg config.EmbedderConfig) ([]embed.Client, error) {
	clients := make([]embed.Client, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "clip":
			clients = append(clients, embed.NewCLIPClient(cfg.CLIP.URL, cfg.CLIP.Model, cfg.CLIP.Timeout))
		case "openai":
			clients = append(clients, embed.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model))
		default:
			return nil, fmt.Errorf("unknown embedding provider %q", name)
		}
	}
	if len(clients) == 0 {
		return nil, embed.ErrNoClients
	}
	return clients, nil
}
