package processor

import (
	"satellite-service/internal/models"

	"github.com/montanaflynn/stats"
)

// ZonalStats is the per-date summary reduced from a clipped index grid.
// Statistics are nil when no valid pixel exists; zero would read as a
// healthy-vegetation signal that was never measured.
type ZonalStats struct {
	Mean               *float64
	Std                *float64
	P10                *float64
	P90                *float64
	ValidPixelFraction float64
	LowConfidence      bool
}

// Aggregate reduces a clipped grid to zonal statistics over valid pixels
// only. A valid-pixel fraction below minValidFraction marks the result
// low-confidence; such samples are stored for transparency but excluded from
// baselines downstream.
func Aggregate(grid *models.IndexGrid, minValidFraction float64) ZonalStats {
	out := ZonalStats{}

	values := make([]float64, 0, grid.ValidPixels)
	for i, ok := range grid.Valid {
		if ok {
			values = append(values, grid.Values[i])
		}
	}

	if grid.PixelsInPolygon > 0 {
		out.ValidPixelFraction = float64(len(values)) / float64(grid.PixelsInPolygon)
	}
	out.LowConfidence = out.ValidPixelFraction < minValidFraction

	if len(values) == 0 {
		out.LowConfidence = true
		return out
	}

	if mean, err := stats.Mean(values); err == nil {
		out.Mean = &mean
	}
	if std, err := stats.StandardDeviation(values); err == nil {
		out.Std = &std
	}
	if p10, err := stats.Percentile(values, 10); err == nil {
		out.P10 = &p10
	}
	if p90, err := stats.Percentile(values, 90); err == nil {
		out.P90 = &p90
	}

	return out
}
