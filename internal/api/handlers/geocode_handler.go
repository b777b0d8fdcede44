package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mgnrega-tn/backend/internal/geocode"
	"github.com/mgnrega-tn/backend/internal/geocode/nominatim"
	"github.com/mgnrega-tn/backend/internal/middleware/validation"
)

type GeocodeHandler struct {
	locator geocode.Locator
}

func NewGeocodeHandler(locator geocode.Locator) *GeocodeHandler {
	return &GeocodeHandler{
		locator: locator,
	}
}

// ReverseGeocode accepts lat/lon from a JSON body or the query string and
// returns {"district": name}.
func (h *GeocodeHandler) ReverseGeocode(c *fiber.Ctx) error {
	point, err := validation.Point(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	district, err := h.locator.District(c.UserContext(), point)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"district": district})
	case errors.Is(err, nominatim.ErrNoDistrict):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "District not found",
		})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Reverse geocode failed",
		})
	}
}
