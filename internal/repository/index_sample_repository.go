package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"satellite-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// IndexSampleRepository is the temporal series store: per-field, per-index,
// per-date zonal summaries in date order.
type IndexSampleRepository struct {
	db *sqlx.DB
}

func NewIndexSampleRepository(db *sqlx.DB) *IndexSampleRepository {
	return &IndexSampleRepository{db: db}
}

// Upsert appends a sample. Re-appending the same (field, index, date) key
// replaces the record deterministically: last write wins, no duplicates.
func (r *IndexSampleRepository) Upsert(ctx context.Context, sample *models.IndexSample) error {
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}
	sample.CreatedAt = time.Now()

	query := `
		INSERT INTO index_samples (
			id, field_id, index_type, date,
			mean, std, p10, p90,
			valid_pixel_fraction, cloud_coverage, low_confidence,
			provider_version, created_at
		) VALUES (
			:id, :field_id, :index_type, :date,
			:mean, :std, :p10, :p90,
			:valid_pixel_fraction, :cloud_coverage, :low_confidence,
			:provider_version, :created_at
		)
		ON CONFLICT (field_id, index_type, date) DO UPDATE SET
			mean = EXCLUDED.mean,
			std = EXCLUDED.std,
			p10 = EXCLUDED.p10,
			p90 = EXCLUDED.p90,
			valid_pixel_fraction = EXCLUDED.valid_pixel_fraction,
			cloud_coverage = EXCLUDED.cloud_coverage,
			low_confidence = EXCLUDED.low_confidence,
			provider_version = EXCLUDED.provider_version,
			created_at = EXCLUDED.created_at`

	_, err := r.db.NamedExecContext(ctx, query, sample)
	if err != nil {
		slog.Error("Failed to upsert index sample",
			"field_id", sample.FieldID,
			"index_type", sample.IndexType,
			"date", sample.Date,
			"error", err)
		return fmt.Errorf("failed to upsert index sample: %w", err)
	}
	return nil
}

// Query returns samples for a date range, strictly ordered by date ascending.
func (r *IndexSampleRepository) Query(ctx context.Context, fieldID uuid.UUID, indexType models.IndexType, from, to time.Time) ([]models.IndexSample, error) {
	var samples []models.IndexSample
	query := `
		SELECT * FROM index_samples
		WHERE field_id = $1 AND index_type = $2 AND date >= $3 AND date <= $4
		ORDER BY date ASC`

	err := r.db.SelectContext(ctx, &samples, query, fieldID, indexType, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query index samples: %w", err)
	}
	return samples, nil
}

// ListByFieldIndex returns the full history for a field/index, date
// ascending. Baselines are derived lazily from this set.
func (r *IndexSampleRepository) ListByFieldIndex(ctx context.Context, fieldID uuid.UUID, indexType models.IndexType) ([]models.IndexSample, error) {
	var samples []models.IndexSample
	query := `
		SELECT * FROM index_samples
		WHERE field_id = $1 AND index_type = $2
		ORDER BY date ASC`

	err := r.db.SelectContext(ctx, &samples, query, fieldID, indexType)
	if err != nil {
		return nil, fmt.Errorf("failed to list index samples: %w", err)
	}
	return samples, nil
}
