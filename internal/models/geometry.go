package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// GeoJSONPolygon represents a GeoJSON Polygon for API input/output and
// PostGIS storage. The first ring is the closed exterior boundary; any
// further rings are holes.
type GeoJSONPolygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// Value implements driver.Valuer: GeoJSON → WKT with SRID prefix for
// GEOMETRY(Polygon, 4326) columns.
func (g *GeoJSONPolygon) Value() (driver.Value, error) {
	if g == nil || g.Type == "" {
		return nil, nil
	}

	geoJSONBytes, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	var geometry geom.T
	if err := geojson.Unmarshal(geoJSONBytes, &geometry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal GeoJSON: %w", err)
	}

	polygon, ok := geometry.(*geom.Polygon)
	if !ok {
		return nil, fmt.Errorf("geometry is not a Polygon")
	}
	polygon.SetSRID(4326)

	wktString, err := wkt.Marshal(polygon)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to WKT: %w", err)
	}

	return fmt.Sprintf("SRID=%d;%s", polygon.SRID(), wktString), nil
}

// Scan implements sql.Scanner: PostGIS EWKB → GeoJSON.
func (g *GeoJSONPolygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan GeoJSONPolygon: expected []byte, got %T", value)
	}

	geometry, err := ewkb.Unmarshal(bytes)
	if err != nil {
		return fmt.Errorf("failed to unmarshal EWKB: %w", err)
	}

	polygon, ok := geometry.(*geom.Polygon)
	if !ok {
		return fmt.Errorf("scanned geometry is not a Polygon")
	}

	geoJSONBytes, err := geojson.Marshal(polygon)
	if err != nil {
		return fmt.Errorf("failed to marshal to GeoJSON: %w", err)
	}

	return json.Unmarshal(geoJSONBytes, g)
}

// Ring returns the exterior ring as [lon, lat] pairs.
func (g *GeoJSONPolygon) Ring() [][]float64 {
	if g == nil || len(g.Coordinates) == 0 {
		return nil
	}
	return g.Coordinates[0]
}

// BoundingBox returns the [lonMin, latMin, lonMax, latMax] envelope of the
// exterior ring.
func (g *GeoJSONPolygon) BoundingBox() BBox {
	ring := g.Ring()
	if len(ring) == 0 {
		return BBox{}
	}
	bbox := BBox{ring[0][0], ring[0][1], ring[0][0], ring[0][1]}
	for _, p := range ring {
		bbox[0] = math.Min(bbox[0], p[0])
		bbox[1] = math.Min(bbox[1], p[1])
		bbox[2] = math.Max(bbox[2], p[0])
		bbox[3] = math.Max(bbox[3], p[1])
	}
	return bbox
}

// ContainsPoint reports whether the lon/lat point lies inside the polygon,
// even-odd rule across all rings so holes are respected. Points exactly on
// an edge may fall either way; the clipping policy only requires a
// deterministic answer for pixel centers.
func (g *GeoJSONPolygon) ContainsPoint(lon, lat float64) bool {
	if g == nil {
		return false
	}
	inside := false
	for _, ring := range g.Coordinates {
		if pointInRing(lon, lat, ring) {
			inside = !inside
		}
	}
	return inside
}

// pointInRing is the classic ray cast: count edge crossings of a horizontal
// ray from the point.
func pointInRing(lon, lat float64, ring [][]float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// AreaHectares approximates the polygon area in hectares using an
// equirectangular projection scaled at the ring centroid. Good to well under
// a percent at field scale, which is all the metadata surface needs.
func (g *GeoJSONPolygon) AreaHectares() float64 {
	ring := g.Ring()
	if len(ring) < 3 {
		return 0
	}

	var latSum float64
	for _, p := range ring {
		latSum += p[1]
	}
	latMid := latSum / float64(len(ring))

	mPerDegLat := 111_000.0
	mPerDegLon := 111_000.0 * math.Max(0.1, math.Abs(math.Cos(latMid*math.Pi/180)))

	// Shoelace over projected coordinates.
	var area float64
	n := len(ring)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		xi, yi := ring[i][0]*mPerDegLon, ring[i][1]*mPerDegLat
		xj, yj := ring[j][0]*mPerDegLon, ring[j][1]*mPerDegLat
		area += xi*yj - xj*yi
	}
	return math.Abs(area) / 2 / 10_000
}
