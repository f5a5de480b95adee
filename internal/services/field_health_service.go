package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"satellite-service/internal/cache"
	"satellite-service/internal/config"
	"satellite-service/internal/models"
	"satellite-service/internal/processor"
	"satellite-service/internal/provider"

	"github.com/google/uuid"
)

// FieldStore is the read-only field geometry store interface this service
// consumes.
type FieldStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Field, error)
}

// SampleStore is the temporal series store interface.
type SampleStore interface {
	Upsert(ctx context.Context, sample *models.IndexSample) error
	Query(ctx context.Context, fieldID uuid.UUID, indexType models.IndexType, from, to time.Time) ([]models.IndexSample, error)
	ListByFieldIndex(ctx context.Context, fieldID uuid.UUID, indexType models.IndexType) ([]models.IndexSample, error)
}

// AlertPublisher pushes watch/alert anomaly flags to downstream alerting.
// Delivery rules stay outside this service.
type AlertPublisher interface {
	PublishAnomaly(ctx context.Context, flag models.AnomalyFlag) error
}

// FieldHealthService orchestrates the pipeline: cache lookup, imagery fetch,
// raster processing, zonal aggregation, persistence, baseline comparison.
type FieldHealthService struct {
	fields    FieldStore
	samples   SampleStore
	imagery   provider.Client
	cache     *cache.Manager
	publisher AlertPublisher
	cfg       config.PipelineConfig
	version   string
}

func NewFieldHealthService(
	fields FieldStore,
	samples SampleStore,
	imagery provider.Client,
	cacheManager *cache.Manager,
	publisher AlertPublisher,
	cfg config.PipelineConfig,
	providerVersion string,
) *FieldHealthService {
	return &FieldHealthService{
		fields:    fields,
		samples:   samples,
		imagery:   imagery,
		cache:     cacheManager,
		publisher: publisher,
		cfg:       cfg,
		version:   providerVersion,
	}
}

// FieldHealthResult is the surface consumed by UI and export layers.
type FieldHealthResult struct {
	FieldID   uuid.UUID            `json:"field_id"`
	IndexType models.IndexType     `json:"index_type"`
	Series    []models.IndexSample `json:"series"`
	Anomalies []models.AnomalyFlag `json:"anomalies"`
	Gaps      []models.SeriesGap   `json:"gaps"`
}

// cachedSeries is the payload memoized per (field, index, range, version).
// Anomaly flags are deliberately not cached: they are derived annotations,
// recomputed on demand against the latest baseline.
type cachedSeries struct {
	Series []models.IndexSample `json:"series"`
	Gaps   []models.SeriesGap   `json:"gaps"`
}

// GetFieldHealth returns the index series for a field and date range plus
// per-date anomaly flags. Concurrent callers for the same key share one
// provider fetch; tile-level failures become typed gaps, never aborts.
func (s *FieldHealthService) GetFieldHealth(ctx context.Context, fieldID uuid.UUID, indexType models.IndexType, from, to time.Time) (*FieldHealthResult, error) {
	field, err := s.fields.GetByID(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	if field.Boundary == nil {
		return nil, fmt.Errorf("%w: field %s has no boundary", models.ErrFieldNotFound, fieldID)
	}

	key := cache.Key(fieldID, indexType, from, to, s.version)
	payload, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		computed, err := s.computeSeries(ctx, field, indexType, from, to)
		if err != nil {
			return nil, err
		}
		return json.Marshal(computed)
	})
	if err != nil {
		return nil, err
	}

	var cached cachedSeries
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("decode cached series: %w", err)
	}

	result := &FieldHealthResult{
		FieldID:   fieldID,
		IndexType: indexType,
		Series:    cached.Series,
		Gaps:      cached.Gaps,
		Anomalies: make([]models.AnomalyFlag, 0, len(cached.Series)),
	}

	if len(cached.Series) == 0 {
		return result, nil
	}

	history, err := s.samples.ListByFieldIndex(ctx, fieldID, indexType)
	if err != nil {
		return nil, fmt.Errorf("load sample history: %w", err)
	}

	thresholds := AnomalyThresholds{
		Watch:              s.cfg.WatchThreshold,
		Alert:              s.cfg.AlertThreshold,
		MinBaselineSamples: s.cfg.MinBaselineSamples,
	}
	for _, sample := range cached.Series {
		baseline := ComputeBaseline(history, fieldID, indexType, sample.Date, s.cfg.BaselineWindowDays)
		flag := DetectAnomaly(sample, baseline, thresholds)
		result.Anomalies = append(result.Anomalies, flag)

		if s.publisher != nil && (flag.Severity == models.SeverityWatch || flag.Severity == models.SeverityAlert) {
			if err := s.publisher.PublishAnomaly(ctx, flag); err != nil {
				slog.Warn("Failed to publish anomaly event",
					"field_id", fieldID, "date", flag.Date, "error", err)
			}
		}
	}

	return result, nil
}

// computeSeries is the cache-miss path: fetch tiles, process each into a
// sample, persist, and account for every hole in the series.
func (s *FieldHealthService) computeSeries(ctx context.Context, field *models.Field, indexType models.IndexType, from, to time.Time) (*cachedSeries, error) {
	bbox := field.Boundary.BoundingBox()

	tiles, err := s.imagery.Fetch(ctx, bbox, from, to, indexType.Bands())
	if err != nil {
		return nil, err
	}

	out := &cachedSeries{
		Series: make([]models.IndexSample, 0, len(tiles)),
		Gaps:   make([]models.SeriesGap, 0),
	}

	if len(tiles) == 0 {
		// Empty catalog result is not an error, just one explained gap.
		out.Gaps = append(out.Gaps, models.SeriesGap{From: from, To: to, Reason: models.GapNoImagery})
		return out, nil
	}

	for _, tile := range tiles {
		grid, err := processor.Compute(tile, field.Boundary, indexType, s.cfg.CloudProbThreshold)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientBands) {
				slog.Warn("Skipping tile with missing bands",
					"field_id", field.ID, "acquired_on", tile.AcquiredOn, "error", err)
				out.Gaps = append(out.Gaps, models.SeriesGap{
					From:   tile.AcquiredOn,
					To:     tile.AcquiredOn,
					Reason: models.GapInsufficientBands,
				})
				continue
			}
			return nil, err
		}

		zonal := processor.Aggregate(grid, s.cfg.MinValidPixelFraction)
		sample := models.IndexSample{
			ID:                 uuid.New(),
			FieldID:            field.ID,
			IndexType:          indexType,
			Date:               tile.AcquiredOn,
			Mean:               zonal.Mean,
			Std:                zonal.Std,
			P10:                zonal.P10,
			P90:                zonal.P90,
			ValidPixelFraction: zonal.ValidPixelFraction,
			CloudCoverage:      tile.CloudCoverage,
			LowConfidence:      zonal.LowConfidence,
			ProviderVersion:    s.version,
		}

		if err := s.samples.Upsert(ctx, &sample); err != nil {
			return nil, fmt.Errorf("persist sample: %w", err)
		}
		out.Series = append(out.Series, sample)
	}

	// The provider owes no ordering guarantee; the series contract does.
	sort.Slice(out.Series, func(i, j int) bool {
		return out.Series[i].Date.Before(out.Series[j].Date)
	})

	return out, nil
}

// InvalidateCache drops every cached payload for a field; the next request
// recomputes from the provider.
func (s *FieldHealthService) InvalidateCache(ctx context.Context, fieldID uuid.UUID) (int, error) {
	removed, err := s.cache.InvalidateField(ctx, fieldID)
	if err != nil {
		return 0, fmt.Errorf("invalidate cache: %w", err)
	}
	slog.Info("Cache invalidated", "field_id", fieldID, "removed", removed)
	return removed, nil
}

// GetField exposes field metadata (boundary, computed area) to the API
// layer.
func (s *FieldHealthService) GetField(ctx context.Context, fieldID uuid.UUID) (*models.Field, error) {
	return s.fields.GetByID(ctx, fieldID)
}
