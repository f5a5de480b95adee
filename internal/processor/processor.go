// Package processor holds the pure raster math: cloud masking, polygon
// clipping, vegetation index computation and zonal aggregation. Nothing here
// touches the network or shared state.
package processor

import (
	"fmt"

	"satellite-service/internal/models"
)

// indexFormula computes one index value from band reflectances. ok is false
// when the denominator is zero.
type indexFormula struct {
	bands   []models.Band
	compute func(vals map[models.Band]float64) (float64, bool)
}

// Closed dispatch table for the supported indices. The formulas are fixed
// contracts; changing one must be paired with a provider version bump so
// cached payloads invalidate.
var formulas = map[models.IndexType]indexFormula{
	models.IndexNDVI: {
		bands: []models.Band{models.BandNIR, models.BandRed},
		compute: func(v map[models.Band]float64) (float64, bool) {
			den := v[models.BandNIR] + v[models.BandRed]
			if den == 0 {
				return 0, false
			}
			return (v[models.BandNIR] - v[models.BandRed]) / den, true
		},
	},
	models.IndexOSAVI: {
		bands: []models.Band{models.BandNIR, models.BandRed},
		compute: func(v map[models.Band]float64) (float64, bool) {
			// 0.16 soil adjustment for sparse canopy.
			den := v[models.BandNIR] + v[models.BandRed] + 0.16
			if den == 0 {
				return 0, false
			}
			return (v[models.BandNIR] - v[models.BandRed]) / den, true
		},
	},
	models.IndexNDRE: {
		bands: []models.Band{models.BandNIR, models.BandRedEdge},
		compute: func(v map[models.Band]float64) (float64, bool) {
			den := v[models.BandNIR] + v[models.BandRedEdge]
			if den == 0 {
				return 0, false
			}
			return (v[models.BandNIR] - v[models.BandRedEdge]) / den, true
		},
	},
}

// Compute clips a tile to the field polygon and evaluates the index per
// pixel. A pixel is counted as inside the polygon when its center is inside
// (boundary pixels follow their center). Inside pixels are invalid when the
// cloud probability exceeds the threshold, the formula denominator is zero,
// or the value falls outside the [-1, 1] range of a normalized index.
func Compute(tile models.RasterTile, boundary *models.GeoJSONPolygon, indexType models.IndexType, cloudProbThreshold float64) (*models.IndexGrid, error) {
	formula, ok := formulas[indexType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedIndex, indexType)
	}

	size := tile.Width * tile.Height
	for _, band := range formula.bands {
		grid, ok := tile.Bands[band]
		if !ok || len(grid) != size {
			return nil, fmt.Errorf("%w: %s", models.ErrInsufficientBands, band)
		}
	}

	out := &models.IndexGrid{
		Width:  tile.Width,
		Height: tile.Height,
		Values: make([]float64, size),
		Valid:  make([]bool, size),
	}

	lonSpan := tile.BBox[2] - tile.BBox[0]
	latSpan := tile.BBox[3] - tile.BBox[1]

	vals := make(map[models.Band]float64, len(formula.bands))
	for y := 0; y < tile.Height; y++ {
		// Row 0 is the northern edge of the bbox.
		lat := tile.BBox[3] - (float64(y)+0.5)*latSpan/float64(tile.Height)
		for x := 0; x < tile.Width; x++ {
			lon := tile.BBox[0] + (float64(x)+0.5)*lonSpan/float64(tile.Width)
			if !boundary.ContainsPoint(lon, lat) {
				continue
			}

			i := y*tile.Width + x
			out.PixelsInPolygon++

			if i < len(tile.CloudProb) && tile.CloudProb[i] > cloudProbThreshold {
				continue
			}

			for _, band := range formula.bands {
				vals[band] = tile.Bands[band][i]
			}
			v, ok := formula.compute(vals)
			if !ok || v < -1 || v > 1 {
				continue
			}

			out.Values[i] = v
			out.Valid[i] = true
			out.ValidPixels++
		}
	}

	return out, nil
}
