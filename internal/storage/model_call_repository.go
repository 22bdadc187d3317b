package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/listing-check/internal/model"
)

// ModelCallRepository handles persistence of embedding backend call tracking.
type ModelCallRepository interface {
	Create(ctx context.Context, call *model.ModelCall) error
	Count(ctx context.Context) (int64, error)
	CountFailed(ctx context.Context) (int64, error)
	CountByProvider(ctx context.Context) (map[string]int64, error)
}

type sqliteModelCallRepository struct {
	db *sqlx.DB
}

// NewModelCallRepository creates a new SQLite-backed ModelCallRepository.
func NewModelCallRepository(db *sqlx.DB) ModelCallRepository {
	return &sqliteModelCallRepository{db: db}
}

func (r *sqliteModelCallRepository) Create(ctx context.Context, call *model.ModelCall) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO model_calls (provider, model, kind, inputs, success, error_message, duration_ms)
		VALUES (:provider, :model, :kind, :inputs, :success, :error_message, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating model call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteModelCallRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM model_calls")
	return count, err
}

func (r *sqliteModelCallRepository) CountFailed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM model_calls WHERE success = 0")
	return count, err
}

func (r *sqliteModelCallRepository) CountByProvider(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Provider string `db:"provider"`
		Count    int64  `db:"n"`
	}
	err := r.db.SelectContext(ctx, &rows,
		"SELECT provider, COUNT(*) AS n FROM model_calls GROUP BY provider ORDER BY provider")
	if err != nil {
		return nil, fmt.Errorf("counting model calls by provider: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Provider] = row.Count
	}
	return out, nil
}
