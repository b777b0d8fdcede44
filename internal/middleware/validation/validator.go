package validation

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/geocode"
)

// PointKey is the fiber.Locals key holding the validated geocode.Point.
const PointKey = "geocode_point"

type Config struct {
	AllowedContentTypes []string
	// CoordinatePaths are route prefixes whose requests must carry lat/lon.
	CoordinatePaths []string
	Logger          *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		path := c.Path()
		for _, prefix := range cfg.CoordinatePaths {
			if !strings.HasPrefix(path, prefix) {
				continue
			}
			if _, err := Point(c); err != nil {
				cfg.Logger.Debug("Rejected coordinates",
					zap.String("ip", c.IP()),
					zap.String("path", path),
					zap.Error(err),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			break
		}

		return c.Next()
	}
}

// Point returns the request coordinates, reading lat/lon from a JSON body
// first and the query string second. The result is memoized in Locals.
func Point(c *fiber.Ctx) (geocode.Point, error) {
	if p, ok := c.Locals(PointKey).(geocode.Point); ok {
		return p, nil
	}

	lat, lon := bodyCoordinates(c.Body())
	if lat == "" {
		lat = c.Query("lat")
	}
	if lon == "" {
		lon = c.Query("lon")
	}

	p, err := geocode.ParsePoint(lat, lon)
	if err != nil {
		return geocode.Point{}, err
	}
	c.Locals(PointKey, p)
	return p, nil
}

// bodyCoordinates accepts numbers or numeric strings. A missing, null or
// unparsable body yields empty strings.
func bodyCoordinates(body []byte) (lat, lon string) {
	if len(body) == 0 {
		return "", ""
	}

	var req map[string]json.RawMessage
	if err := json.Unmarshal(body, &req); err != nil {
		return "", ""
	}
	return rawScalar(req["lat"]), rawScalar(req["lon"])
}

func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.HasPrefix(strings.ToLower(contentType), t) {
			return true
		}
	}
	return false
}

// IsCoordinateError reports whether err came from coordinate validation.
func IsCoordinateError(err error) bool {
	return errors.Is(err, geocode.ErrMissingCoordinates) || errors.Is(err, geocode.ErrInvalidCoordinates)
}
