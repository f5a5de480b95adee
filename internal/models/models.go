package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// SPECTRAL BANDS AND VEGETATION INDICES
// ============================================================================

// Band identifies a Sentinel-2 L2A spectral band by its provider name.
type Band string

const (
	BandRed     Band = "B04" // red, 10m
	BandRedEdge Band = "B05" // red edge, 20m
	BandNIR     Band = "B08" // near infrared, 10m
)

// IndexType is the closed set of supported vegetation indices.
type IndexType string

const (
	IndexNDVI  IndexType = "NDVI"
	IndexOSAVI IndexType = "OSAVI"
	IndexNDRE  IndexType = "NDRE"
)

// ParseIndexType validates a caller-supplied index tag.
func ParseIndexType(s string) (IndexType, error) {
	switch IndexType(strings.ToUpper(strings.TrimSpace(s))) {
	case IndexNDVI:
		return IndexNDVI, nil
	case IndexOSAVI:
		return IndexOSAVI, nil
	case IndexNDRE:
		return IndexNDRE, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedIndex, s)
}

// Bands returns the spectral bands required to compute the index.
func (t IndexType) Bands() []Band {
	if t == IndexNDRE {
		return []Band{BandNIR, BandRedEdge}
	}
	return []Band{BandNIR, BandRed}
}

// ============================================================================
// RASTER TILES (ephemeral, never persisted)
// ============================================================================

// BBox is [lonMin, latMin, lonMax, latMax] in EPSG:4326.
type BBox [4]float64

// RasterTile is one multispectral acquisition covering a bounding box.
// Tiles exist only for the duration of a single request.
type RasterTile struct {
	ProviderID    string             `json:"provider_id"`
	BBox          BBox               `json:"bbox"`
	AcquiredOn    time.Time          `json:"acquired_on"`
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	Bands         map[Band][]float64 `json:"bands"`
	CloudProb     []float64          `json:"cloud_probability"`
	CloudCoverage float64            `json:"cloud_coverage"`
}

// IndexGrid is a per-pixel vegetation index raster clipped to a field
// polygon. Values and Valid are row-major Width*Height; pixels outside the
// polygon are marked invalid and excluded from PixelsInPolygon.
type IndexGrid struct {
	Width           int
	Height          int
	Values          []float64
	Valid           []bool
	PixelsInPolygon int
	ValidPixels     int
}

// ============================================================================
// TIME-SERIES SAMPLES AND BASELINES
// ============================================================================

// IndexSample is the per-field, per-index, per-date zonal summary.
// Statistics are nil (not zero) when no valid pixel survived masking; a zero
// mean would read as a false vegetation signal.
type IndexSample struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	FieldID            uuid.UUID `json:"field_id" db:"field_id"`
	IndexType          IndexType `json:"index_type" db:"index_type"`
	Date               time.Time `json:"date" db:"date"`
	Mean               *float64  `json:"mean" db:"mean"`
	Std                *float64  `json:"std" db:"std"`
	P10                *float64  `json:"p10" db:"p10"`
	P90                *float64  `json:"p90" db:"p90"`
	ValidPixelFraction float64   `json:"valid_pixel_fraction" db:"valid_pixel_fraction"`
	CloudCoverage      float64   `json:"cloud_coverage" db:"cloud_coverage"`
	LowConfidence      bool      `json:"low_confidence" db:"low_confidence"`
	ProviderVersion    string    `json:"provider_version" db:"provider_version"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Baseline is the historical reference distribution for a field/index around
// a day-of-year window. It is recomputed lazily from stored samples, never
// maintained incrementally.
type Baseline struct {
	FieldID     uuid.UUID `json:"field_id"`
	IndexType   IndexType `json:"index_type"`
	DayOfYear   int       `json:"day_of_year"`
	WindowDays  int       `json:"window_days"`
	Mean        float64   `json:"mean"`
	Std         float64   `json:"std"`
	SampleCount int       `json:"sample_count"`
}

// ============================================================================
// ANOMALY FLAGS
// ============================================================================

type Severity string

const (
	SeverityNormal           Severity = "normal"
	SeverityWatch            Severity = "watch"
	SeverityAlert            Severity = "alert"
	SeverityInsufficientData Severity = "insufficient_data"
)

// AnomalyFlag annotates one sample with its deviation from baseline. Flags
// are derived on demand and never stored as ground truth. DeviationScore is
// a signed z-score: negative means vigor loss relative to baseline.
type AnomalyFlag struct {
	FieldID        uuid.UUID `json:"field_id"`
	IndexType      IndexType `json:"index_type"`
	Date           time.Time `json:"date"`
	DeviationScore float64   `json:"deviation_score"`
	Severity       Severity  `json:"severity"`
}

// SeriesGap explains a hole in a returned series. Every missing date range is
// attributable to a typed reason; gaps are never silent.
type SeriesGap struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Reason string    `json:"reason"`
}

const (
	GapNoImagery         = "no_cloud_free_imagery"
	GapInsufficientBands = "insufficient_bands"
)

// ============================================================================
// FIELDS
// ============================================================================

// Field is a registered parcel with its polygon boundary. Owned by the field
// geometry store; read-only to this service.
type Field struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	CropType  string          `json:"crop_type" db:"crop_type"`
	OwnerID   string          `json:"owner_id" db:"owner_id"`
	Boundary  *GeoJSONPolygon `json:"boundary" db:"-"`
	AreaHa    float64         `json:"area_ha" db:"-"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
