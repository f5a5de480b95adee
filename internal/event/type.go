package event

import (
	"time"

	"satellite-service/internal/models"
)

// AnomalyQueue receives vegetation anomaly events for downstream alerting
// (notification rules and delivery live outside this service).
const AnomalyQueue string = "vegetation_anomaly_events"

type AnomalyEvent struct {
	ID             string           `json:"id"`
	FieldID        string           `json:"field_id"`
	IndexType      models.IndexType `json:"index_type"`
	Date           string           `json:"date"`
	DeviationScore float64          `json:"deviation_score"`
	Severity       models.Severity  `json:"severity"`
	DetectedAt     time.Time        `json:"detected_at"`
}
