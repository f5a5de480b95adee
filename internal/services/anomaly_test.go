package services

import (
	"math"
	"testing"
	"time"

	"satellite-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func defaultThresholds() AnomalyThresholds {
	return AnomalyThresholds{Watch: 1.0, Alert: 2.0, MinBaselineSamples: 3}
}

func baselineWith(mean, std float64, count int) models.Baseline {
	return models.Baseline{Mean: mean, Std: std, SampleCount: count}
}

// ============================================================================
// Z-SCORE AND SEVERITY TIERS
// ============================================================================

func TestDetectAnomaly_SignedZScore(t *testing.T) {
	fieldID := uuid.New()
	sample := sampleOn(fieldID, day(2023, 5, 15), 0.30)
	baseline := baselineWith(0.54, 0.05, 4)

	flag := DetectAnomaly(sample, baseline, defaultThresholds())
	assert.InDelta(t, -4.8, flag.DeviationScore, 1e-9)
	assert.Equal(t, models.SeverityAlert, flag.Severity)
	assert.Equal(t, fieldID, flag.FieldID)
	assert.Equal(t, models.IndexNDVI, flag.IndexType)
}

func TestDetectAnomaly_PositiveDeviationAlsoFlagged(t *testing.T) {
	fieldID := uuid.New()
	sample := sampleOn(fieldID, day(2023, 5, 15), 0.80)
	baseline := baselineWith(0.50, 0.10, 5)

	flag := DetectAnomaly(sample, baseline, defaultThresholds())
	assert.InDelta(t, 3.0, flag.DeviationScore, 1e-9)
	assert.Equal(t, models.SeverityAlert, flag.Severity)
}

func TestDetectAnomaly_TierBoundaries(t *testing.T) {
	fieldID := uuid.New()
	baseline := baselineWith(0.50, 0.10, 5)
	th := defaultThresholds()

	cases := []struct {
		name string
		mean float64
		want models.Severity
	}{
		{"well inside normal", 0.55, models.SeverityNormal},
		{"just below watch", 0.599, models.SeverityNormal},
		{"exactly watch", 0.60, models.SeverityWatch},
		{"between tiers", 0.65, models.SeverityWatch},
		{"exactly alert", 0.70, models.SeverityAlert},
		{"beyond alert", 0.90, models.SeverityAlert},
		{"negative watch", 0.40, models.SeverityWatch},
		{"negative alert", 0.30, models.SeverityAlert},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sample := sampleOn(fieldID, day(2023, 5, 15), tc.mean)
			flag := DetectAnomaly(sample, baseline, th)
			assert.Equal(t, tc.want, flag.Severity)
		})
	}
}

func TestDetectAnomaly_SeverityMonotoneInDeviation(t *testing.T) {
	fieldID := uuid.New()
	baseline := baselineWith(0.50, 0.05, 5)
	th := defaultThresholds()

	rank := map[models.Severity]int{
		models.SeverityNormal: 0,
		models.SeverityWatch:  1,
		models.SeverityAlert:  2,
	}

	prev := -1
	for mean := 0.50; mean >= 0.30; mean -= 0.01 {
		sample := sampleOn(fieldID, day(2023, 5, 15), mean)
		flag := DetectAnomaly(sample, baseline, th)
		r, ok := rank[flag.Severity]
		assert.True(t, ok)
		assert.GreaterOrEqual(t, r, prev, "severity must not decrease as deviation grows (mean=%v)", mean)
		prev = r
	}
}

// ============================================================================
// INSUFFICIENT DATA AND DEGENERATE BASELINES
// ============================================================================

func TestDetectAnomaly_LowConfidenceSample(t *testing.T) {
	fieldID := uuid.New()
	sample := sampleOn(fieldID, day(2023, 5, 15), 0.10)
	sample.LowConfidence = true

	flag := DetectAnomaly(sample, baselineWith(0.50, 0.05, 10), defaultThresholds())
	assert.Equal(t, models.SeverityInsufficientData, flag.Severity)
	assert.Zero(t, flag.DeviationScore)
}

func TestDetectAnomaly_ThinBaseline(t *testing.T) {
	fieldID := uuid.New()
	sample := sampleOn(fieldID, day(2023, 5, 15), 0.10)

	flag := DetectAnomaly(sample, baselineWith(0.50, 0.05, 2), defaultThresholds())
	assert.Equal(t, models.SeverityInsufficientData, flag.Severity)
}

func TestDetectAnomaly_MissingMean(t *testing.T) {
	fieldID := uuid.New()
	sample := sampleOn(fieldID, day(2023, 5, 15), 0)
	sample.Mean = nil

	flag := DetectAnomaly(sample, baselineWith(0.50, 0.05, 10), defaultThresholds())
	assert.Equal(t, models.SeverityInsufficientData, flag.Severity)
}

func TestDetectAnomaly_ZeroStdIsNormal(t *testing.T) {
	fieldID := uuid.New()
	sample := sampleOn(fieldID, day(2023, 5, 15), 0.90)

	flag := DetectAnomaly(sample, baselineWith(0.50, 0, 5), defaultThresholds())
	assert.Equal(t, models.SeverityNormal, flag.Severity)
	assert.Zero(t, flag.DeviationScore)
	assert.False(t, math.IsNaN(flag.DeviationScore))
	assert.False(t, math.IsInf(flag.DeviationScore, 0))
}

func TestDetectAnomaly_CarriesSampleDate(t *testing.T) {
	fieldID := uuid.New()
	date := time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC)
	sample := sampleOn(fieldID, date, 0.55)

	flag := DetectAnomaly(sample, baselineWith(0.54, 0.05, 4), defaultThresholds())
	assert.True(t, flag.Date.Equal(date))
}
