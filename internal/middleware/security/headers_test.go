package security

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		dev      bool
		wantHSTS bool
	}{
		{name: "production", dev: false, wantHSTS: true},
		{name: "development", dev: true, wantHSTS: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(HeadersMiddleware(HeadersConfig{IsDevelopment: tt.dev}))
			app.Get("/api/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

			resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
			require.NoError(t, err)

			assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
			assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "frame-ancestors 'none'")
			assert.Equal(t, tt.wantHSTS, resp.Header.Get("Strict-Transport-Security") != "")
		})
	}
}
