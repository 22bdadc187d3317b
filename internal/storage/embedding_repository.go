package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/listing-check/internal/model"
)

// ErrNotFound is returned when a row or file doesn't exist.
var ErrNotFound = errors.New("not found")

// EmbeddingRepository is the durable embedding cache.
// Lookup reports a miss with ok == false and a nil error.
type EmbeddingRepository interface {
	Lookup(ctx context.Context, key model.EmbeddingKey) ([]float32, bool, error)
	Save(ctx context.Context, key model.EmbeddingKey, vec []float32) error
	Count(ctx context.Context) (int64, error)
	DeleteModel(ctx context.Context, modelName string) (int64, error)
}

type sqliteEmbeddingRepository struct {
	db *sqlx.DB
}

// NewEmbeddingRepository creates a new SQLite-backed EmbeddingRepository.
func NewEmbeddingRepository(db *sqlx.DB) EmbeddingRepository {
	return &sqliteEmbeddingRepository{db: db}
}

func (r *sqliteEmbeddingRepository) Lookup(ctx context.Context, key model.EmbeddingKey) ([]float32, bool, error) {
	var row model.Embedding
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM embeddings WHERE model = ? AND kind = ? AND content_hash = ?",
		key.Model, key.Kind, key.ContentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up embedding %s: %w", key, err)
	}

	vec, err := model.DecodeVector(row.Vector)
	if err != nil {
		return nil, false, fmt.Errorf("decoding embedding %s: %w", key, err)
	}
	if len(vec) != row.Dims {
		return nil, false, fmt.Errorf("embedding %s: stored %d dims, decoded %d", key, row.Dims, len(vec))
	}
	return vec, true, nil
}

func (r *sqliteEmbeddingRepository) Save(ctx context.Context, key model.EmbeddingKey, vec []float32) error {
	row := model.Embedding{
		EmbeddingKey: key,
		Dims:         len(vec),
		Vector:       model.EncodeVector(vec),
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO embeddings (model, kind, content_hash, dims, vector)
		VALUES (:model, :kind, :content_hash, :dims, :vector)
	`, row)
	if err != nil {
		return fmt.Errorf("saving embedding %s: %w", key, err)
	}
	return nil
}

func (r *sqliteEmbeddingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM embeddings")
	return count, err
}

// DeleteModel drops every cached vector for a model, e.g. after swapping weights
// behind an unchanged model name.
func (r *sqliteEmbeddingRepository) DeleteModel(ctx context.Context, modelName string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM embeddings WHERE model = ?", modelName)
	if err != nil {
		return 0, fmt.Errorf("deleting embeddings for %s: %w", modelName, err)
	}
	return res.RowsAffected()
}
