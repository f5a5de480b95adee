package services

import (
	"math"

	"satellite-service/internal/models"
)

// AnomalyThresholds are the severity cut points on |z-score|. Tunable via
// configuration; the UI layer owns any presentation-level thresholds.
type AnomalyThresholds struct {
	Watch              float64
	Alert              float64
	MinBaselineSamples int
}

// DetectAnomaly scores one sample against its baseline.
//
// The deviation score is the signed z-score (sample.mean - baseline.mean) /
// baseline.std, so callers can tell vigor loss from vigor gain. A
// low-confidence sample or a thin baseline yields insufficient_data rather
// than a guess. Zero baseline std means no historical variance to compare
// against: treated as no anomaly.
func DetectAnomaly(sample models.IndexSample, baseline models.Baseline, thresholds AnomalyThresholds) models.AnomalyFlag {
	flag := models.AnomalyFlag{
		FieldID:   sample.FieldID,
		IndexType: sample.IndexType,
		Date:      sample.Date,
	}

	if sample.LowConfidence || sample.Mean == nil || baseline.SampleCount < thresholds.MinBaselineSamples {
		flag.Severity = models.SeverityInsufficientData
		return flag
	}

	if baseline.Std == 0 {
		flag.Severity = models.SeverityNormal
		return flag
	}

	flag.DeviationScore = (*sample.Mean - baseline.Mean) / baseline.Std

	switch abs := math.Abs(flag.DeviationScore); {
	case abs >= thresholds.Alert:
		flag.Severity = models.SeverityAlert
	case abs >= thresholds.Watch:
		flag.Severity = models.SeverityWatch
	default:
		flag.Severity = models.SeverityNormal
	}
	return flag
}
