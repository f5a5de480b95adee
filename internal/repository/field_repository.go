package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"satellite-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// FieldRepository reads field polygons and metadata. The geometry store is
// owned elsewhere; this service never writes to it.
type FieldRepository struct {
	db *sqlx.DB
}

func NewFieldRepository(db *sqlx.DB) *FieldRepository {
	return &FieldRepository{db: db}
}

type fieldRow struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	CropType    string    `db:"crop_type"`
	OwnerID     string    `db:"owner_id"`
	BoundaryWKB []byte    `db:"boundary_wkb"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// GetByID retrieves a field with its boundary polygon.
func (r *FieldRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Field, error) {
	var row fieldRow
	query := `
		SELECT id, name, crop_type, owner_id,
		       ST_AsBinary(boundary) AS boundary_wkb,
		       created_at, updated_at
		FROM fields WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrFieldNotFound, id)
		}
		return nil, fmt.Errorf("failed to get field: %w", err)
	}

	field := &models.Field{
		ID:        row.ID,
		Name:      row.Name,
		CropType:  row.CropType,
		OwnerID:   row.OwnerID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := unmarshalBoundary(row.BoundaryWKB, field); err != nil {
		return nil, err
	}
	return field, nil
}

func unmarshalBoundary(raw []byte, field *models.Field) error {
	if len(raw) == 0 {
		return nil
	}

	boundaryGeom, err := wkb.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("unmarshal boundary: %w", err)
	}
	poly, ok := boundaryGeom.(*geom.Polygon)
	if !ok {
		return fmt.Errorf("boundary is not a Polygon")
	}

	coords := make([][][]float64, poly.NumLinearRings())
	for i := 0; i < poly.NumLinearRings(); i++ {
		ring := poly.LinearRing(i)
		ringCoords := make([][]float64, ring.NumCoords())
		for j := 0; j < ring.NumCoords(); j++ {
			coord := ring.Coord(j)
			ringCoords[j] = []float64{coord.X(), coord.Y()}
		}
		coords[i] = ringCoords
	}

	field.Boundary = &models.GeoJSONPolygon{
		Type:        "Polygon",
		Coordinates: coords,
	}
	field.AreaHa = field.Boundary.AreaHectares()
	return nil
}
