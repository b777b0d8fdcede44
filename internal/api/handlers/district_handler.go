package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/resolver"
	"github.com/mgnrega-tn/backend/pkg/logger"
)

// DataSourceHeader names the tier that produced a district response.
const DataSourceHeader = "X-Data-Source"

type DistrictHandler struct {
	engine *resolver.Engine
}

func NewDistrictHandler(engine *resolver.Engine) *DistrictHandler {
	return &DistrictHandler{
		engine: engine,
	}
}

func (h *DistrictHandler) ListDistricts(c *fiber.Ctx) error {
	districts, tier := h.engine.ListDistricts(c.UserContext())

	c.Set(DataSourceHeader, string(tier))
	return c.JSON(districts)
}

func (h *DistrictHandler) GetSummary(c *fiber.Ctx) error {
	id, ok := districtID(c)
	if !ok {
		return notFound(c)
	}

	summary, tier, err := h.engine.DistrictSummary(c.UserContext(), id)
	if errors.Is(err, resolver.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		logger.Error("Failed to resolve district summary", zap.Int64("district_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load district summary",
		})
	}

	c.Set(DataSourceHeader, string(tier))
	return c.JSON(summary)
}

func (h *DistrictHandler) GetDetails(c *fiber.Ctx) error {
	id, ok := districtID(c)
	if !ok {
		return notFound(c)
	}

	district, err := h.engine.DistrictDetails(id)
	if err != nil {
		return notFound(c)
	}

	c.Set(DataSourceHeader, string(resolver.TierCatalog))
	return c.JSON(district)
}

func districtID(c *fiber.Ctx) (int64, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 0 {
		return 0, false
	}
	return int64(id), true
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "District not found",
	})
}
