package services

import (
	"math"
	"time"

	"satellite-service/internal/models"

	"github.com/google/uuid"
)

// ComputeBaseline derives the historical reference distribution for a
// field/index around the day-of-year of the target date. It is a
// deterministic function of the stored samples: recomputed lazily, never
// maintained incrementally.
//
// Exclusions: low-confidence samples, samples without a mean, and samples
// from the target's own season (calendar year), so a sample is never
// compared against itself or its neighbors.
func ComputeBaseline(samples []models.IndexSample, fieldID uuid.UUID, indexType models.IndexType, target time.Time, windowDays int) models.Baseline {
	baseline := models.Baseline{
		FieldID:    fieldID,
		IndexType:  indexType,
		DayOfYear:  target.YearDay(),
		WindowDays: windowDays,
	}

	var means []float64
	for _, s := range samples {
		if s.LowConfidence || s.Mean == nil {
			continue
		}
		if s.Date.Year() >= target.Year() {
			continue
		}
		if !withinDayOfYearWindow(s.Date, target, windowDays) {
			continue
		}
		means = append(means, *s.Mean)
	}

	baseline.SampleCount = len(means)
	if len(means) == 0 {
		return baseline
	}

	var sum float64
	for _, m := range means {
		sum += m
	}
	baseline.Mean = sum / float64(len(means))

	var sumSq float64
	for _, m := range means {
		d := m - baseline.Mean
		sumSq += d * d
	}
	baseline.Std = math.Sqrt(sumSq / float64(len(means)))

	return baseline
}

// withinDayOfYearWindow compares day-of-year distance with wraparound, so a
// late-December target still matches early-January history.
func withinDayOfYearWindow(date, target time.Time, windowDays int) bool {
	d := math.Abs(float64(date.YearDay() - target.YearDay()))
	if d > 365-d {
		d = 365 - d
	}
	return d <= float64(windowDays)
}
