package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMissingCoordinates = errors.New("missing lat/lon")
	ErrInvalidCoordinates = errors.New("invalid lat/lon")
)

type Point struct {
	Lat float64
	Lon float64
}

// Locator maps a coordinate to the name of the district containing it.
type Locator interface {
	District(ctx context.Context, p Point) (string, error)
}

// ParsePoint validates raw lat/lon strings. Either value being blank is
// ErrMissingCoordinates; unparsable or out-of-range values are
// ErrInvalidCoordinates.
func ParsePoint(lat, lon string) (Point, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return Point{}, ErrMissingCoordinates
	}

	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || la < -90 || la > 90 {
		return Point{}, fmt.Errorf("%w: lat %q", ErrInvalidCoordinates, lat)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil || lo < -180 || lo > 180 {
		return Point{}, fmt.Errorf("%w: lon %q", ErrInvalidCoordinates, lon)
	}
	return Point{Lat: la, Lon: lo}, nil
}

func (p Point) String() string {
	return FormatCoordinate(p.Lat) + "," + FormatCoordinate(p.Lon)
}

func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
