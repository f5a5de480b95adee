package provider

import (
	"math"

	"satellite-service/internal/models"
)

// computeDims derives raster output dimensions from the bbox extent and a
// target ground resolution, clamped to provider limits. Longitude degrees
// shrink with latitude; the 0.1 floor keeps polar-ish boxes from collapsing.
func computeDims(bbox models.BBox, targetMPerPixel float64, minDim, maxDim int) (int, int) {
	if targetMPerPixel <= 0 {
		targetMPerPixel = 10
	}
	if minDim <= 0 {
		minDim = 512
	}
	if maxDim < minDim {
		maxDim = minDim
	}

	latMid := (bbox[1] + bbox[3]) / 2
	mPerDegLat := 111_000.0
	mPerDegLon := 111_000.0 * math.Max(0.1, math.Abs(math.Cos(latMid*math.Pi/180)))

	widthM := (bbox[2] - bbox[0]) * mPerDegLon
	heightM := (bbox[3] - bbox[1]) * mPerDegLat

	w := clamp(int(math.Round(widthM/targetMPerPixel)), minDim, maxDim)
	h := clamp(int(math.Round(heightM/targetMPerPixel)), minDim, maxDim)

	// Conservative guard against oversized requests.
	const maxPixels = 2300 * 2300
	if w*h > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(w*h))
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	return w, h
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
