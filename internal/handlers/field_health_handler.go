package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"satellite-service/internal/cache"
	"satellite-service/internal/models"
	"satellite-service/internal/services"
	"satellite-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type FieldHealthHandler struct {
	healthService *services.FieldHealthService
	cacheManager  *cache.Manager
}

func NewFieldHealthHandler(healthService *services.FieldHealthService, cacheManager *cache.Manager) *FieldHealthHandler {
	return &FieldHealthHandler{
		healthService: healthService,
		cacheManager:  cacheManager,
	}
}

func (h *FieldHealthHandler) Register(app *fiber.App) {
	gr := app.Group("satellite/api/v1")

	gr.Get("/fields/:field_id", h.GetField)
	gr.Get("/fields/:field_id/health", h.GetFieldHealth)
	gr.Delete("/fields/:field_id/cache", h.InvalidateCache)
	gr.Get("/cache/stats", h.CacheStats)
}

// GetFieldHealth returns the index series plus anomaly flags for a field.
// Query params: index (NDVI|OSAVI|NDRE), from, to (YYYY-MM-DD).
func (h *FieldHealthHandler) GetFieldHealth(c fiber.Ctx) error {
	fieldID, err := uuid.Parse(c.Params("field_id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_UUID", "Invalid field ID format"))
	}

	indexType, err := models.ParseIndexType(c.Query("index", string(models.IndexNDVI)))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_INDEX", "Index must be one of NDVI, OSAVI, NDRE"))
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_DATE", "Query param 'from' must be YYYY-MM-DD"))
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_DATE", "Query param 'to' must be YYYY-MM-DD"))
	}
	if to.Before(from) {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_RANGE", "'to' must not precede 'from'"))
	}

	result, err := h.healthService.GetFieldHealth(c.Context(), fieldID, indexType, from, to)
	if err != nil {
		return h.mapPipelineError(c, err, fieldID)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(result))
}

// GetField returns field metadata including boundary and computed area.
func (h *FieldHealthHandler) GetField(c fiber.Ctx) error {
	fieldID, err := uuid.Parse(c.Params("field_id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_UUID", "Invalid field ID format"))
	}

	field, err := h.healthService.GetField(c.Context(), fieldID)
	if err != nil {
		if errors.Is(err, models.ErrFieldNotFound) {
			return c.Status(http.StatusNotFound).JSON(
				utils.CreateErrorResponse("NOT_FOUND", "Field not found"))
		}
		slog.Error("Failed to get field", "field_id", fieldID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("RETRIEVAL_FAILED", "Failed to retrieve field"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(field))
}

// InvalidateCache drops all cached series for a field (manual refresh).
func (h *FieldHealthHandler) InvalidateCache(c fiber.Ctx) error {
	fieldID, err := uuid.Parse(c.Params("field_id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_UUID", "Invalid field ID format"))
	}

	removed, err := h.healthService.InvalidateCache(c.Context(), fieldID)
	if err != nil {
		slog.Error("Failed to invalidate cache", "field_id", fieldID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("INVALIDATION_FAILED", "Failed to invalidate cache"))
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(fiber.Map{
		"field_id": fieldID,
		"removed":  removed,
	}))
}

// CacheStats reports hit/miss counters and entry count.
func (h *FieldHealthHandler) CacheStats(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(h.cacheManager.Stats()))
}

func (h *FieldHealthHandler) mapPipelineError(c fiber.Ctx, err error, fieldID uuid.UUID) error {
	var rateLimited *models.RateLimitedError
	switch {
	case errors.Is(err, models.ErrFieldNotFound):
		return c.Status(http.StatusNotFound).JSON(
			utils.CreateErrorResponse("NOT_FOUND", "Field not found"))
	case errors.As(err, &rateLimited):
		c.Set("Retry-After", rateLimited.RetryAfter.String())
		return c.Status(http.StatusTooManyRequests).JSON(
			utils.CreateErrorResponse("RATE_LIMITED", "Imagery provider rate limited, retry later"))
	case errors.Is(err, models.ErrAuthExpired):
		slog.Error("Provider credentials expired", "error", err)
		return c.Status(http.StatusBadGateway).JSON(
			utils.CreateErrorResponse("PROVIDER_AUTH_EXPIRED", "Imagery provider rejected credentials"))
	case errors.Is(err, models.ErrProviderUnavailable):
		slog.Error("Provider unavailable", "field_id", fieldID, "error", err)
		return c.Status(http.StatusServiceUnavailable).JSON(
			utils.CreateErrorResponse("PROVIDER_UNAVAILABLE", "Imagery provider is unavailable"))
	default:
		slog.Error("Field health request failed", "field_id", fieldID, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(
			utils.CreateErrorResponse("PIPELINE_FAILED", "Failed to compute field health"))
	}
}
