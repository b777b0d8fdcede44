package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgnrega-tn/backend/internal/catalog"
	"github.com/mgnrega-tn/backend/internal/geocode"
	"github.com/mgnrega-tn/backend/internal/geocode/nominatim"
	"github.com/mgnrega-tn/backend/internal/resolver"
	"github.com/mgnrega-tn/backend/internal/snapshot"
	"github.com/mgnrega-tn/backend/internal/storage/models"
)

type stubStore struct {
	districts []models.District
	metrics   map[int64][]models.MonthlyMetric
}

func (s *stubStore) ListDistricts(context.Context) ([]models.District, error) {
	return s.districts, nil
}

func (s *stubStore) GetDistrict(_ context.Context, id int64) (*models.District, error) {
	for _, d := range s.districts {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *stubStore) ListMonthlyMetrics(_ context.Context, id int64) ([]models.MonthlyMetric, error) {
	return s.metrics[id], nil
}

type stubSnapshots map[string][]snapshot.Row

func (s stubSnapshots) FindDistrict(_ context.Context, name string) ([]snapshot.Row, error) {
	return s[name], nil
}

type stubLocator struct {
	district string
	err      error
	got      geocode.Point
}

func (l *stubLocator) District(_ context.Context, p geocode.Point) (string, error) {
	l.got = p
	return l.district, l.err
}

func districtApp(store resolver.Store, snaps resolver.Snapshots) *fiber.App {
	engine := resolver.NewEngine(store, nil, snaps, catalog.Default(), 0)
	h := NewDistrictHandler(engine)

	app := fiber.New()
	app.Get("/api/districts", h.ListDistricts)
	app.Get("/api/district/:id/summary", h.GetSummary)
	app.Get("/api/district/:id", h.GetDetails)
	return app
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), string(body))
}

func TestListDistrictsFallsBackToCatalog(t *testing.T) {
	app := districtApp(nil, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/districts", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "catalog", resp.Header.Get(DataSourceHeader))

	var out []map[string]any
	decode(t, resp, &out)
	require.Len(t, out, catalog.Default().Len())
	assert.Equal(t, "Chennai", out[0]["name"])
	assert.EqualValues(t, 1, out[0]["id"])
}

func TestGetSummaryFromStore(t *testing.T) {
	store := &stubStore{
		districts: []models.District{{ID: 1, Name: "Chennai"}},
		metrics: map[int64][]models.MonthlyMetric{
			1: {{Year: 2024, Month: 4, PersonsBenefitted: 5, PersonDays: 50, WagesPaid: 500, HouseholdsWorked: 2}},
		},
	}
	app := districtApp(store, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/district/1/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "store", resp.Header.Get(DataSourceHeader))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"year":2024,"month":4,"persons":5,"person_days":50,"wages":500,"households":2}]`, string(body))
}

func TestGetSummaryFromSnapshot(t *testing.T) {
	snaps := stubSnapshots{"Salem": {{Year: 2024, Month: 2, Wages: 7}}}
	app := districtApp(&stubStore{}, snaps)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/district/5/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "snapshot", resp.Header.Get(DataSourceHeader))
}

func TestGetSummaryNotFound(t *testing.T) {
	app := districtApp(&stubStore{}, stubSnapshots{})

	for _, target := range []string{"/api/district/999/summary", "/api/district/abc/summary", "/api/district/5/summary"} {
		resp, err := app.Test(httptest.NewRequest("GET", target, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, target)

		var out map[string]string
		decode(t, resp, &out)
		assert.Equal(t, "District not found", out["error"])
	}
}

func TestGetDetails(t *testing.T) {
	app := districtApp(nil, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/district/17", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var d catalog.District
	decode(t, resp, &d)
	assert.Equal(t, int64(17), d.ID)
	assert.Equal(t, "Vellore", d.Name)
	assert.Contains(t, d.Taluks, "Katpadi")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/district/404", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func geocodeApp(l geocode.Locator) *fiber.App {
	h := NewGeocodeHandler(l)
	app := fiber.New()
	app.Get("/api/reverse-geocode", h.ReverseGeocode)
	app.Post("/api/reverse-geocode", h.ReverseGeocode)
	return app
}

func TestReverseGeocode(t *testing.T) {
	l := &stubLocator{district: "Vellore"}

	resp, err := geocodeApp(l).Test(httptest.NewRequest("GET", "/api/reverse-geocode?lat=12.91&lon=79.13", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, geocode.Point{Lat: 12.91, Lon: 79.13}, l.got)

	var out map[string]string
	decode(t, resp, &out)
	assert.Equal(t, "Vellore", out["district"])
}

func TestReverseGeocodeBodyWins(t *testing.T) {
	l := &stubLocator{district: "Chennai"}
	req := httptest.NewRequest("POST", "/api/reverse-geocode?lat=1&lon=1", strings.NewReader(`{"lat":13.08,"lon":80.27}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := geocodeApp(l).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, geocode.Point{Lat: 13.08, Lon: 80.27}, l.got)
}

func TestReverseGeocodeStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{name: "missing params", target: "/api/reverse-geocode?lat=13", want: fiber.StatusBadRequest},
		{name: "provider failure", target: "/api/reverse-geocode?lat=13&lon=80", err: nominatim.ErrProviderFailure, want: fiber.StatusBadGateway},
		{name: "unexpected error", target: "/api/reverse-geocode?lat=13&lon=80", err: errors.New("boom"), want: fiber.StatusBadGateway},
		{name: "no district", target: "/api/reverse-geocode?lat=13&lon=80", err: nominatim.ErrNoDistrict, want: fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := geocodeApp(&stubLocator{err: tt.err}).Test(httptest.NewRequest("GET", tt.target, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
