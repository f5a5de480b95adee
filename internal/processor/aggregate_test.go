package processor

import (
	"math"
	"testing"

	"satellite-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridFromValues(values []float64, extraInPolygon int) *models.IndexGrid {
	grid := &models.IndexGrid{
		Width:           len(values) + extraInPolygon,
		Height:          1,
		Values:          make([]float64, len(values)+extraInPolygon),
		Valid:           make([]bool, len(values)+extraInPolygon),
		PixelsInPolygon: len(values) + extraInPolygon,
		ValidPixels:     len(values),
	}
	for i, v := range values {
		grid.Values[i] = v
		grid.Valid[i] = true
	}
	return grid
}

func TestAggregate_SummaryStatistics(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	grid := gridFromValues(values, 0)

	stats := Aggregate(grid, 0.3)

	require.NotNil(t, stats.Mean)
	require.NotNil(t, stats.Std)
	require.NotNil(t, stats.P10)
	require.NotNil(t, stats.P90)

	assert.InDelta(t, 0.55, *stats.Mean, 1e-9)
	// Population standard deviation of the 0.1..1.0 ramp.
	assert.InDelta(t, math.Sqrt(0.0825), *stats.Std, 1e-9)
	assert.InDelta(t, 0.1, *stats.P10, 1e-9)
	assert.InDelta(t, 0.9, *stats.P90, 1e-9)
	assert.Equal(t, 1.0, stats.ValidPixelFraction)
	assert.False(t, stats.LowConfidence)
}

func TestAggregate_ValidPixelFraction(t *testing.T) {
	// 4 valid out of 10 in-polygon pixels.
	grid := gridFromValues([]float64{0.2, 0.4, 0.6, 0.8}, 6)

	stats := Aggregate(grid, 0.3)

	assert.InDelta(t, 0.4, stats.ValidPixelFraction, 1e-9)
	assert.False(t, stats.LowConfidence)
	require.NotNil(t, stats.Mean)
	assert.InDelta(t, 0.5, *stats.Mean, 1e-9)
}

func TestAggregate_BelowMinFractionIsLowConfidence(t *testing.T) {
	// 2 valid out of 10 is under the 0.3 minimum.
	grid := gridFromValues([]float64{0.2, 0.4}, 8)

	stats := Aggregate(grid, 0.3)

	assert.True(t, stats.LowConfidence)
	// Statistics still reported for transparency.
	require.NotNil(t, stats.Mean)
	assert.InDelta(t, 0.3, *stats.Mean, 1e-9)
}

func TestAggregate_NoValidPixelsYieldsNilStats(t *testing.T) {
	grid := gridFromValues(nil, 10)

	stats := Aggregate(grid, 0.3)

	// Nil, not zero: zero would be a false signal of healthy vegetation.
	assert.Nil(t, stats.Mean)
	assert.Nil(t, stats.Std)
	assert.Nil(t, stats.P10)
	assert.Nil(t, stats.P90)
	assert.Equal(t, 0.0, stats.ValidPixelFraction)
	assert.True(t, stats.LowConfidence)
}

func TestAggregate_EmptyPolygon(t *testing.T) {
	stats := Aggregate(&models.IndexGrid{}, 0.3)

	assert.True(t, stats.LowConfidence)
	assert.Nil(t, stats.Mean)
}
