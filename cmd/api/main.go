package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/mgnrega-tn/backend/internal/api/handlers"
	"github.com/mgnrega-tn/backend/internal/bootstrap"
	"github.com/mgnrega-tn/backend/internal/catalog"
	"github.com/mgnrega-tn/backend/internal/geocode/nominatim"
	"github.com/mgnrega-tn/backend/internal/metrics"
	"github.com/mgnrega-tn/backend/internal/middleware/ratelimit"
	"github.com/mgnrega-tn/backend/internal/middleware/security"
	"github.com/mgnrega-tn/backend/internal/middleware/validation"
	"github.com/mgnrega-tn/backend/internal/resolver"
	"github.com/mgnrega-tn/backend/internal/snapshot"
	"github.com/mgnrega-tn/backend/pkg/config"
	appLogger "github.com/mgnrega-tn/backend/pkg/logger"
)

const reverseGeocodePath = "/api/reverse-geocode"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting MGNREGA district API", zap.String("region", cfg.Upstream.Region))

	metrics.Init()
	ctx := context.Background()

	// The store is optional: without it reads fall through to snapshots
	// and the static catalog.
	var store resolver.Store
	sqlClient, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		appLogger.Warn("Primary store unavailable, serving from fallbacks", zap.Error(err))
	} else {
		defer sqlClient.Close()
		store = sqlClient
	}

	redisClient, err := bootstrap.OpenRedis(ctx, cfg.Cache.RedisURL)
	if err != nil {
		appLogger.Warn("Redis unavailable", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	resultCache := bootstrap.NewCache(cfg.Cache, redisClient)
	archive := snapshot.NewArchive(cfg.Snapshot.Dir, cfg.Snapshot.MaxFiles)
	engine := resolver.NewEngine(store, resultCache, archive, catalog.Default(), cfg.Cache.TTL())

	geocoder := nominatim.NewClient(
		cfg.Geocode.BaseURL,
		cfg.Geocode.UserAgent,
		time.Duration(cfg.Geocode.TimeoutSec)*time.Second,
	)

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Geocode.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Server.Development,
	}))
	app.Use(validation.Middleware(validation.Config{
		CoordinatePaths: []string{reverseGeocodePath},
		Logger:          appLogger.GetLogger(),
	}))

	districtHandler := handlers.NewDistrictHandler(engine)
	geocodeHandler := handlers.NewGeocodeHandler(geocoder)

	api := app.Group("/api")

	api.Get("/districts", districtHandler.ListDistricts)
	api.Get("/district/:id/summary", districtHandler.GetSummary)
	api.Get("/district/:id", districtHandler.GetDetails)

	app.Get(reverseGeocodePath, limiter.Middleware(), geocodeHandler.ReverseGeocode)
	app.Post(reverseGeocodePath, limiter.Middleware(), geocodeHandler.ReverseGeocode)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
